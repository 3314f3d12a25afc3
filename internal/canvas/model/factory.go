package model

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

const (
	spawnArea = 200.0
	maxTilt   = 10.0
)

// NewItem builds an item the way the toolbar does: fresh id, a random spot in
// the top-left area of the canvas and a small random tilt. Photos start with
// an empty caption; notes take a palette color.
func NewItem(t ItemType, content string, color string) (LetterItem, error) {
	if !t.Valid() {
		return LetterItem{}, ErrInvalidType
	}
	item := LetterItem{
		ID:       uuid.NewString(),
		Type:     t,
		Content:  content,
		Position: Position{X: rand.Float64() * spawnArea, Y: rand.Float64() * spawnArea},
		Rotation: (rand.Float64() - 0.5) * maxTilt,
	}
	switch t {
	case ItemPhoto:
		empty := ""
		item.Caption = &empty
	case ItemNote:
		c, ok := ParseColor(color)
		if !ok {
			return LetterItem{}, ErrInvalidColor
		}
		item.Color = string(c)
	}
	return item, nil
}
