package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"giftletter/pkg/logger"
)

// Pebble is an embedded on-disk Store for single-node deployments.
type Pebble struct {
	db *pebble.DB
}

func OpenPebble(path string) (*Pebble, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	logger.Sugar.Infof("Opening pebble store at %s", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(_ context.Context, key string) ([]byte, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	// pebble owns v until closer.Close
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (p *Pebble) Set(_ context.Context, key string, value []byte) error {
	return p.db.Set([]byte(key), value, pebble.Sync)
}

func (p *Pebble) Delete(_ context.Context, key string) error {
	return p.db.Delete([]byte(key), pebble.Sync)
}

func (p *Pebble) DeletePrefix(_ context.Context, prefix string) error {
	start := []byte(prefix)
	end := prefixEnd(start)
	if end == nil {
		keys, err := p.Keys(context.Background(), prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := p.db.Delete([]byte(k), pebble.Sync); err != nil {
				return err
			}
		}
		return nil
	}
	return p.db.DeleteRange(start, end, pebble.Sync)
}

func (p *Pebble) Keys(_ context.Context, prefix string) ([]string, error) {
	opts := &pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: prefixEnd([]byte(prefix))}
	it, err := p.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	keys := []string{}
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, string(it.Key()))
	}
	return keys, it.Error()
}

func (p *Pebble) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
