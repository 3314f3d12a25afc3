package persistence

import (
	"context"
	"errors"
	"fmt"

	"giftletter/internal/canvas/model"
)

var ErrMissingGiftID = errors.New("missing gift id")

type Loader interface {
	Load(ctx context.Context, giftID string) ([]model.LetterItem, error)
}

// Restore reads the stored collection once at session start. A gift that was
// never saved restores as an empty collection; read failures are returned.
func Restore(ctx context.Context, loader Loader, giftID string) ([]model.LetterItem, error) {
	if giftID == "" {
		return nil, ErrMissingGiftID
	}
	items, err := loader.Load(ctx, giftID)
	if err != nil {
		return nil, fmt.Errorf("restore canvas state for %s: %w", giftID, err)
	}
	if items == nil {
		items = []model.LetterItem{}
	}
	return items, nil
}
