// Package pgstore implements the gateway directly over PostgreSQL for
// self-hosted and local development setups. It serves the same schema the
// hosted backend exposes and keeps its own password and token tables.
package pgstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/database"
	"domino-community/internal/shared/errors"
	"domino-community/internal/tokenstore"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Options struct {
	Secret []byte
	// TokenTTL is the access token lifetime.
	TokenTTL time.Duration
	Store    tokenstore.Store
	Now      func() time.Time
}

type Store struct {
	db       *database.DB
	secret   []byte
	tokenTTL time.Duration
	store    tokenstore.Store
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	session  *gateway.Session
	restored bool

	listeners gateway.Listeners
}

var _ gateway.Gateway = (*Store)(nil)

func New(db *database.DB, opts Options) (*Store, error) {
	if len(opts.Secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes")
	}

	store := opts.Store
	if store == nil {
		store = tokenstore.NewMemoryStore()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Store{
		db:       db,
		secret:   opts.Secret,
		tokenTTL: ttl,
		store:    store,
		now:      now,
		logger:   slog.With("component", "pg_gateway"),
	}, nil
}

func (s *Store) Select(ctx context.Context, collection gateway.Collection, query gateway.Query) ([]gateway.Record, error) {
	logger := s.logger.With("operation", "select", "collection", collection)

	stmt, args, err := BuildSelect(collection, query)
	if err != nil {
		return nil, errors.WrapExternal("invalid query", err)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		logger.Error("Select failed", "error", err)
		return nil, dbError("select failed", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, dbError("failed to read rows", err)
	}

	logger.Debug("Select completed", "count", len(records))
	return records, nil
}

func (s *Store) Insert(ctx context.Context, collection gateway.Collection, records ...gateway.Record) ([]gateway.Record, error) {
	logger := s.logger.With("operation", "insert", "collection", collection, "rows", len(records))

	if len(records) == 0 {
		return nil, nil
	}

	statements := make([]string, len(records))
	arguments := make([][]any, len(records))
	for i, record := range records {
		row := make(gateway.Record, len(record)+1)
		for k, v := range record {
			row[k] = v
		}
		if id, ok := row["id"]; !ok || id == nil || id == "" {
			row["id"] = uuid.NewString()
		}
		stmt, args, err := BuildInsert(collection, row)
		if err != nil {
			return nil, errors.WrapExternal("invalid insert", err)
		}
		statements[i], arguments[i] = stmt, args
	}

	tx, err := s.db.BeginTxContext(ctx)
	if err != nil {
		return nil, errors.WrapExternal("insert failed", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	created := make([]gateway.Record, 0, len(records))
	for i := range statements {
		rows, err := tx.QueryContext(ctx, statements[i], arguments[i]...)
		if err != nil {
			logger.Info("Insert rejected", "error", err)
			return nil, dbError("insert failed", err)
		}
		scanned, err := scanRecords(rows)
		rows.Close()
		if err != nil {
			return nil, dbError("insert failed", err)
		}
		created = append(created, scanned...)
	}

	if err := tx.Commit(); err != nil {
		return nil, dbError("insert failed", err)
	}

	logger.Debug("Insert completed")
	return created, nil
}

func (s *Store) Count(ctx context.Context, collection gateway.Collection, filters ...gateway.Filter) (int, error) {
	stmt, args, err := BuildCount(collection, filters)
	if err != nil {
		return 0, errors.WrapExternal("invalid filter", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		s.logger.Error("Count failed", "collection", collection, "error", err)
		return 0, dbError("count failed", err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]gateway.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []gateway.Record
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		record := make(gateway.Record, len(columns))
		for i, col := range columns {
			record[col] = normalize(values[i])
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// normalize turns driver values into the JSON-friendly shapes the hosted
// backend returns.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func dbError(message string, err error) error {
	if isUniqueViolation(err) {
		return errors.Conflictf("%s: %v", message, err)
	}
	return errors.WrapExternal(message, err)
}
