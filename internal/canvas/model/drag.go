package model

// DragGesture tracks one pointer drag on the canvas surface. Begin records
// where inside the item the pointer grabbed it; Move turns a pointer position
// into the item's new top-left corner relative to the canvas container.
type DragGesture struct {
	ItemID  string
	offsetX float64
	offsetY float64
	active  bool
}

// Begin starts a drag. pointer and itemOrigin are in client coordinates.
func (g *DragGesture) Begin(itemID string, pointer, itemOrigin Position) {
	g.ItemID = itemID
	g.offsetX = pointer.X - itemOrigin.X
	g.offsetY = pointer.Y - itemOrigin.Y
	g.active = true
}

// Move returns the item position for the pointer, or false when no drag is active.
func (g *DragGesture) Move(pointer, containerOrigin Position) (Position, bool) {
	if !g.active {
		return Position{}, false
	}
	return Position{
		X: pointer.X - containerOrigin.X - g.offsetX,
		Y: pointer.Y - containerOrigin.Y - g.offsetY,
	}, true
}

// End finishes the drag (pointer up or pointer leaving the surface).
func (g *DragGesture) End() {
	*g = DragGesture{}
}

func (g *DragGesture) Active() bool { return g.active }
