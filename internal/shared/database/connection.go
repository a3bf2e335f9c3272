// Package database opens the PostgreSQL pool used by the postgres gateway and
// applies its schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"domino-community/internal/shared/config"

	_ "github.com/lib/pq"
)

const connectTimeout = 5 * time.Second

type DB struct {
	*sql.DB
}

type Tx struct {
	*sql.Tx
}

func (db *DB) BeginTxContext(ctx context.Context) (*Tx, error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx}, nil
}

// Connect opens the pool and checks it answers within connectTimeout.
func Connect(ctx context.Context, cfg *config.Config) (*DB, error) {
	logger := slog.With("component", "database", "operation", "connect",
		"host", cfg.Database.Host, "database", cfg.Database.Name)

	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		logger.Error("Database did not answer", "error", err)
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Debug("Database connected", "max_open_conns", cfg.Database.MaxOpenConns)
	return &DB{sqlDB}, nil
}
