package model

import (
	"errors"
	"fmt"
)

type ItemType string

const (
	ItemPhoto   ItemType = "photo"
	ItemNote    ItemType = "note"
	ItemVoice   ItemType = "voice"
	ItemSpotify ItemType = "spotify" // spotify embed
	ItemDoodle  ItemType = "doodle"
)

var itemTypes = map[ItemType]bool{
	ItemPhoto:   true,
	ItemNote:    true,
	ItemVoice:   true,
	ItemSpotify: true,
	ItemDoodle:  true,
}

// Valid reports whether t belongs to the closed set of item kinds.
func (t ItemType) Valid() bool {
	return itemTypes[t]
}

var (
	ErrMissingID    = errors.New("item id is required")
	ErrInvalidType  = errors.New("invalid item type")
	ErrInvalidColor = errors.New("invalid note color")
	ErrDuplicateID  = errors.New("duplicate item id")
)

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// LetterItem is one object placed on a gift canvas. ID and Type never change
// after creation; Rotation is fixed when the item is made.
type LetterItem struct {
	ID       string   `json:"id" yaml:"id"`
	Type     ItemType `json:"type" yaml:"type"`
	Content  string   `json:"content" yaml:"content"`
	Position Position `json:"position" yaml:"position"`
	Rotation float64  `json:"rotation" yaml:"rotation"`
	Scale    *float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Caption  *string  `json:"caption,omitempty" yaml:"caption,omitempty"`
	Color    string   `json:"color,omitempty" yaml:"color,omitempty"`
}

// Validate checks a single item and normalises legacy note colors in place.
func (i *LetterItem) Validate() error {
	if i.ID == "" {
		return ErrMissingID
	}
	if !i.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, i.Type)
	}
	if i.Type == ItemNote {
		c, ok := ParseColor(i.Color)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidColor, i.Color)
		}
		i.Color = string(c)
	}
	return nil
}
