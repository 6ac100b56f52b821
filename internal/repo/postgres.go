package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Relay/internal/domain"
)

// Execer — часть pgxpool.Pool, нужная PostgresStore.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore — Record Store поверх таблицы PostgreSQL с JSONB.
//
// Схема таблицы:
//
//	partition_key TEXT PRIMARY KEY
//	key_field     TEXT NOT NULL
//	item          JSONB NOT NULL
//	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
type PostgresStore struct {
	db      Execer
	ensured sync.Map // table -> struct{}
}

// NewPostgresStore создаёт новый PostgresStore.
func NewPostgresStore(db Execer) *PostgresStore {
	return &PostgresStore{db: db}
}

// Backend возвращает имя бэкенда.
func (s *PostgresStore) Backend() string {
	return BackendPostgres
}

// EnsureSchema создаёт таблицу, если её ещё нет.
func (s *PostgresStore) EnsureSchema(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if _, ok := s.ensured.Load(table); ok {
		return nil
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			partition_key TEXT PRIMARY KEY,
			key_field     TEXT NOT NULL,
			item          JSONB NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, quoteTable(table))
	if _, err := s.db.Exec(ctx, query); err != nil {
		return classifyPgError(ctx, fmt.Errorf("create table: %w", err))
	}

	s.ensured.Store(table, struct{}{})
	return nil
}

// Put выполняет upsert записи.
func (s *PostgresStore) Put(ctx context.Context, table, keyField string, record domain.Record) (domain.StoreStatus, error) {
	key, err := ItemKey(record, keyField)
	if err != nil {
		return domain.StoreStatus{}, err
	}
	if err := s.EnsureSchema(ctx, table); err != nil {
		return domain.StoreStatus{}, err
	}

	itemJSON, err := json.Marshal(record)
	if err != nil {
		return domain.StoreStatus{}, fmt.Errorf("%w: marshal item: %v", ErrInvalidRecord, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (partition_key, key_field, item, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (partition_key) DO UPDATE
		SET key_field = EXCLUDED.key_field, item = EXCLUDED.item, updated_at = now()
	`, quoteTable(table))

	if _, err := s.db.Exec(ctx, query, key, keyField, itemJSON); err != nil {
		return domain.StoreStatus{}, classifyPgError(ctx, fmt.Errorf("upsert record: %w", err))
	}

	return domain.StoreStatus{Backend: BackendPostgres, StatusCode: http.StatusOK}, nil
}

// quoteTable экранирует имя таблицы; "schema.table" допускается.
func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

func classifyPgError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var pgErr *pgconn.PgError
	// Class 53 — Insufficient Resources (too_many_connections и т.п.)
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "53") {
		return fmt.Errorf("%w: %v", ErrStoreThrottled, err)
	}

	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
