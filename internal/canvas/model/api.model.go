package model

// Gift is returned once when a gift is created. Token is the editor
// credential; Link is what the sender shares.
type Gift struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Link  string `json:"link"`
}

type AddItemRequest struct {
	Type     ItemType  `json:"type"`
	Content  string    `json:"content"`
	Color    string    `json:"color,omitempty"`
	Position *Position `json:"position,omitempty"`
}

type MoveItemRequest struct {
	Position Position `json:"position"`
}

type UpdateItemRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type ItemResponse struct {
	Item LetterItem `json:"item"`
}

type CanvasResponse struct {
	GiftID string       `json:"gift_id"`
	Items  []LetterItem `json:"items"`
}

type UploadResponse struct {
	URL string `json:"url"`
}
