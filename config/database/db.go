package database

import (
	"database/sql"
	"fmt"
	"time"

	"giftletter/config"
	"giftletter/pkg/logger"

	_ "github.com/lib/pq"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// Connect opens the Postgres pool and pings it a few times before giving up,
// so a slow DNS or network start does not kill the process.
func Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	for i := 0; i < pingAttempts; i++ {
		if err = db.Ping(); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db, nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", pingBackoff, err)
		time.Sleep(pingBackoff)
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", pingAttempts, err)
}
