// Package postgres provides Postgres-backed persistence for jobs, results,
// and site policies.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbPool is the subset of pgxpool.Pool the stores need. pgxmock satisfies it.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store bundles the job, result, policy, and retention repositories over one
// connection pool.
type Store struct {
	pool dbPool
}

// New connects a Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
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
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

// translateErr maps driver errors onto the domain error types. Unique
// violations on site policy indexes become ConflictError with the offending
// field pulled from the constraint name.
func translateErr(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &scraper.NotFoundError{Entity: entity, ID: id}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		field := "name"
		if strings.Contains(pgErr.ConstraintName, "domain") {
			field = "domain"
		}
		return &scraper.ConflictError{Field: field, Value: valueFromDetail(pgErr.Detail)}
	}
	return err
}

// valueFromDetail pulls the colliding value out of Postgres's
// "Key (col)=(value) already exists." detail line.
func valueFromDetail(detail string) string {
	open := strings.Index(detail, ")=(")
	if open < 0 {
		return ""
	}
	rest := detail[open+3:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func marshalMap(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal map: %w", err)
	}
	return b, nil
}

func unmarshalMap(b []byte) (map[string]string, error) {
	if len(b) == 0 {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal map: %w", err)
	}
	return m, nil
}

func marshalStrings(s []string) ([]byte, error) {
	if s == nil {
		s = []string{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return b, nil
}

func unmarshalStrings(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s []string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return s, nil
}

func marshalHeader(h http.Header) ([]byte, error) {
	if h == nil {
		h = http.Header{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal headers: %w", err)
	}
	return b, nil
}

func unmarshalHeader(b []byte) (http.Header, error) {
	if len(b) == 0 {
		return http.Header{}, nil
	}
	var h http.Header
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	return h, nil
}

func marshalAny(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal structured data: %w", err)
	}
	return b, nil
}

func unmarshalAny(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal structured data: %w", err)
	}
	return m, nil
}

// millis converts a duration to whole milliseconds for storage.
func millis(d time.Duration) int64 { return d.Milliseconds() }

// fromMillis restores a duration stored as milliseconds.
func fromMillis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

type rowScanner interface {
	Scan(dest ...any) error
}

func rollback(ctx context.Context, tx pgx.Tx) {
	// ErrTxClosed after a successful commit is expected.
	_ = tx.Rollback(ctx)
}
