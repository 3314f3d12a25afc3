package storage

import (
	"context"

	"giftletter/config"
	"giftletter/config/database"
	"giftletter/pkg/kv"
	"giftletter/pkg/logger"
)

// Open returns the key-value backend selected by KV_BACKEND. The Postgres
// backend creates its table on first use.
func Open(ctx context.Context, cfg config.Config) (kv.Store, error) {
	switch cfg.KVBackend {
	case config.BackendPebble:
		return kv.OpenPebble(cfg.PebblePath)
	case config.BackendMemory:
		logger.Sugar.Warn("Using in-memory store, gifts are lost on restart")
		return kv.NewMemory(), nil
	default:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		pg := kv.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return pg, nil
	}
}
