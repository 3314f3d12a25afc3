// Package itemstore holds the in-memory item collection of one gift canvas.
//
// Every mutation replaces the collection slice and, for the touched item, the
// item pointer. Untouched items keep their pointer, so a consumer can tell
// what changed by comparing pointers.
package itemstore

import (
	"errors"
	"fmt"
	"sync"

	"giftletter/internal/canvas/model"
)

type Field string

const (
	FieldContent Field = "content"
	FieldCaption Field = "caption"
)

var ErrInvalidField = errors.New("field cannot be edited")

// Observer receives the new collection after every mutation. It runs while
// the store is locked and must not call back into the store.
type Observer func(items []*model.LetterItem)

type Store struct {
	mu       sync.Mutex
	items    []*model.LetterItem
	observer Observer
}

func New(observer Observer) *Store {
	return &Store{items: []*model.LetterItem{}, observer: observer}
}

// Items returns the current collection. Callers must treat it as read-only.
func (s *Store) Items() []*model.LetterItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

// Values returns a copy of the collection in paint order.
func (s *Store) Values() []model.LetterItem {
	return Values(s.Items())
}

func (s *Store) Get(id string) (model.LetterItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return *s.items[i], true
	}
	return model.LetterItem{}, false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Add appends item on top of the canvas.
func (s *Store) Add(item model.LetterItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(item.ID) >= 0 {
		return fmt.Errorf("%w: %s", model.ErrDuplicateID, item.ID)
	}
	next := make([]*model.LetterItem, len(s.items), len(s.items)+1)
	copy(next, s.items)
	s.commit(append(next, &item))
	return nil
}

// UpdatePosition moves an item. Unknown ids are ignored.
func (s *Store) UpdatePosition(id string, pos model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(id, func(it *model.LetterItem) { it.Position = pos })
}

// UpdateField edits a text-bearing field. Unknown ids are ignored; a field
// the item does not carry is rejected.
func (s *Store) UpdateField(id string, field Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	switch {
	case field == FieldContent:
		s.replace(id, func(it *model.LetterItem) { it.Content = value })
	case field == FieldCaption && s.items[i].Type == model.ItemPhoto:
		s.replace(id, func(it *model.LetterItem) { it.Caption = &value })
	default:
		return fmt.Errorf("%w: %q on %s item", ErrInvalidField, field, s.items[i].Type)
	}
	return nil
}

// Delete removes an item. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	next := make([]*model.LetterItem, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	s.commit(next)
}

// Restore swaps in a whole collection, typically a loaded snapshot. It is not
// a mutation: the observer is not called.
func (s *Store) Restore(items []model.LetterItem) error {
	restored := make([]model.LetterItem, len(items))
	copy(restored, items)
	if err := model.ValidateSnapshot(restored); err != nil {
		return err
	}
	next := make([]*model.LetterItem, len(restored))
	for i := range restored {
		next[i] = &restored[i]
	}
	s.mu.Lock()
	s.items = next
	s.mu.Unlock()
	return nil
}

func (s *Store) replace(id string, edit func(*model.LetterItem)) {
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	updated := *s.items[i]
	edit(&updated)
	next := make([]*model.LetterItem, len(s.items))
	copy(next, s.items)
	next[i] = &updated
	s.commit(next)
}

func (s *Store) commit(next []*model.LetterItem) {
	s.items = next
	if s.observer != nil {
		s.observer(next)
	}
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Values dereferences a collection into plain values.
func Values(items []*model.LetterItem) []model.LetterItem {
	out := make([]model.LetterItem, len(items))
	for i, it := range items {
		out[i] = *it
	}
	return out
}
