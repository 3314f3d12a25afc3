package model

import (
	"encoding/json"
	"fmt"
)

// ValidateSnapshot checks every item of a collection and the uniqueness of
// their ids. Items are normalised in place.
func ValidateSnapshot(items []LetterItem) error {
	seen := make(map[string]struct{}, len(items))
	for idx := range items {
		if err := items[idx].Validate(); err != nil {
			return fmt.Errorf("item %d: %w", idx, err)
		}
		if _, dup := seen[items[idx].ID]; dup {
			return fmt.Errorf("item %d: %w %q", idx, ErrDuplicateID, items[idx].ID)
		}
		seen[items[idx].ID] = struct{}{}
	}
	return nil
}

// EncodeSnapshot serializes a collection; a nil collection encodes as [].
func EncodeSnapshot(items []LetterItem) ([]byte, error) {
	if items == nil {
		items = []LetterItem{}
	}
	return json.Marshal(items)
}

// DecodeSnapshot parses and validates a stored snapshot. A JSON null decodes
// to an empty collection.
func DecodeSnapshot(data []byte) ([]LetterItem, error) {
	var items []LetterItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if items == nil {
		items = []LetterItem{}
	}
	if err := ValidateSnapshot(items); err != nil {
		return nil, err
	}
	return items, nil
}
