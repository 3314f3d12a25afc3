// Package kv holds the key-value backends the snapshot repository and the
// upload store write to. Every backend is constructed explicitly and passed
// to its users; nothing in this package keeps a process-wide handle.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been set or was deleted.
var ErrNotFound = errors.New("kv: key not found")

// Store is a byte-oriented key-value store. Set is always a full replace.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// Keys lists the keys starting with prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists (prefix is all 0xff).
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
