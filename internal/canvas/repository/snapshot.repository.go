package repository

import (
	"context"
	"errors"
	"fmt"

	"giftletter/internal/canvas/model"
	"giftletter/pkg/kv"
	"giftletter/pkg/logger"
)

const keyPrefix = "canvas:"

var ErrMissingFields = errors.New("missing required fields")

// SnapshotRepository stores one JSON array of items per gift under canvas:{giftID}.
type SnapshotRepository struct {
	KV kv.Store
}

func NewSnapshotRepository(store kv.Store) *SnapshotRepository {
	return &SnapshotRepository{KV: store}
}

func Key(giftID string) string {
	return keyPrefix + giftID
}

// Load returns the stored collection, or an empty one if the gift was never saved.
func (r *SnapshotRepository) Load(ctx context.Context, giftID string) ([]model.LetterItem, error) {
	if giftID == "" {
		return nil, fmt.Errorf("%w: gift id", ErrMissingFields)
	}
	logger.Sugar.Debugf("Restoring state from %s", Key(giftID))

	data, err := r.KV.Get(ctx, Key(giftID))
	if errors.Is(err, kv.ErrNotFound) {
		return []model.LetterItem{}, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to fetch canvas state for %s: %v", giftID, err)
		return nil, fmt.Errorf("fetch canvas state: %w", err)
	}
	items, err := model.DecodeSnapshot(data)
	if err != nil {
		logger.Sugar.Errorf("Stored canvas state for %s is invalid: %v", giftID, err)
		return nil, err
	}
	return items, nil
}

// Save replaces the stored collection. A nil collection is rejected; use an
// empty slice to store an empty canvas.
func (r *SnapshotRepository) Save(ctx context.Context, giftID string, items []model.LetterItem) error {
	if giftID == "" || items == nil {
		return ErrMissingFields
	}
	data, err := model.EncodeSnapshot(items)
	if err != nil {
		return err
	}
	logger.Sugar.Debugf("Saving new state to %s", Key(giftID))
	if err := r.KV.Set(ctx, Key(giftID), data); err != nil {
		return fmt.Errorf("save canvas state: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, giftID string) error {
	if giftID == "" {
		return ErrMissingFields
	}
	return r.KV.Delete(ctx, Key(giftID))
}

// List returns the ids of every gift with a stored snapshot.
func (r *SnapshotRepository) List(ctx context.Context) ([]string, error) {
	keys, err := r.KV.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k[len(keyPrefix):]
	}
	return ids, nil
}
