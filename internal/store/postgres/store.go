// Package postgres persists harvested work records in a Postgres
// table. Each page batch is appended in one transaction so the table
// never holds a partial page.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/openlibrary-harvester/internal/harvest"
)

// Config holds Postgres connection settings for the work store.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the subset of pgxpool.Pool the store uses, kept narrow
// so tests can substitute a mock pool.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// WorkStore appends harvested records to a Postgres table.
type WorkStore struct {
	pool  pgxPool
	table string
}

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewWorkStore connects to Postgres, ensures the target table exists
// and returns a ready store.
func NewWorkStore(ctx context.Context, cfg Config) (*WorkStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	store, err := NewWorkStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWorkStoreWithPool creates a store on an existing pool. The
// schema is not touched; call EnsureSchema when the table may be
// missing.
func NewWorkStoreWithPool(pool pgxPool, table string) (*WorkStore, error) {
	if table == "" {
		table = "harvested_works"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &WorkStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the work table if it does not exist yet.
func (s *WorkStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			work_id     TEXT PRIMARY KEY,
			title       TEXT NOT NULL DEFAULT '',
			authors     TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			avg_rating  DOUBLE PRECISION,
			appended_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure work table: %w", err)
	}
	return nil
}

// Exists reports whether the work table is present in the database.
func (s *WorkStore) Exists(ctx context.Context) (bool, error) {
	var name *string
	err := s.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", s.table).Scan(&name)
	if err != nil {
		return false, fmt.Errorf("probe work table: %w", err)
	}
	return name != nil, nil
}

// Keys returns every work id stored so far.
func (s *WorkStore) Keys(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT work_id FROM %s", s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read work ids: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan work id: %w", err)
		}
		keys = append(keys, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read work ids: %w", err)
	}
	return keys, nil
}

// Append inserts records inside a single transaction.
func (s *WorkStore) Append(ctx context.Context, records []harvest.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(`
		INSERT INTO %s (work_id, title, authors, description, avg_rating)
		VALUES ($1, $2, $3, $4, $5)`, s.table)
	for _, rec := range records {
		if _, err := tx.Exec(ctx, query, rec.WorkID, rec.Title, rec.Authors, rec.Description, rec.AvgRating); err != nil {
			return fmt.Errorf("insert work %s: %w", rec.WorkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *WorkStore) Close() {
	s.pool.Close()
}
