package kv

import (
	"context"
	"database/sql"
	"errors"

	"giftletter/pkg/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres keeps every key in a single kv_store table.
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

// EnsureSchema creates the kv_store table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, schema)
	if err != nil {
		logger.Sugar.Errorf("Failed to create kv_store table: %v", err)
	}
	return err
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.DB.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get key %s: %v", key, err)
		return nil, err
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, key, value)
	if err != nil {
		logger.Sugar.Errorf("Failed to set key %s: %v", key, err)
	}
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.DB.ExecContext(ctx, "DELETE FROM kv_store WHERE key = $1", key)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete key %s: %v", key, err)
	}
	return err
}

func (p *Postgres) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := p.DB.ExecContext(ctx, "DELETE FROM kv_store WHERE starts_with(key, $1)", prefix)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete keys with prefix %s: %v", prefix, err)
	}
	return err
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.DB.QueryContext(ctx, "SELECT key FROM kv_store WHERE starts_with(key, $1) ORDER BY key", prefix)
	if err != nil {
		logger.Sugar.Errorf("Failed to list keys with prefix %s: %v", prefix, err)
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *Postgres) Close() error {
	return p.DB.Close()
}
