package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/ports"
)

const stateTable = "advisory_state"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStateStore keeps the last-seen advisory in a single keyed row.
type PostgresStateStore struct {
	db  *sql.DB
	key string
	now func() time.Time
}

var _ ports.StateStore = (*PostgresStateStore)(nil)

// OpenPostgres opens a lib/pq connection pool without touching the network.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStateStore wires a sql.DB implementation.
func NewPostgresStateStore(db *sql.DB, key string) *PostgresStateStore {
	return &PostgresStateStore{db: db, key: key, now: time.Now}
}

// EnsureSchema creates the state table when it does not exist yet.
func (s *PostgresStateStore) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(stateTable) + ` (
    state_key   TEXT PRIMARY KEY,
    advisory_id TEXT NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}

// Get returns nil, nil when no advisory was recorded yet.
func (s *PostgresStateStore) Get(ctx context.Context) (*domain.LastSeenRecord, error) {
	query, args, err := psql.
		Select("advisory_id", "updated_at").
		From(stateTable).
		Where(sq.Eq{"state_key": s.key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var record domain.LastSeenRecord
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&record.ID, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last seen: %w", err)
	}
	return &record, nil
}

// Set upserts the last-seen advisory id.
func (s *PostgresStateStore) Set(ctx context.Context, id string) error {
	query, args, err := psql.
		Insert(stateTable).
		Columns("state_key", "advisory_id", "updated_at").
		Values(s.key, id, s.now().UTC()).
		Suffix("ON CONFLICT (state_key) DO UPDATE SET advisory_id = EXCLUDED.advisory_id, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert last seen: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *PostgresStateStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStateStore) Close() error {
	return s.db.Close()
}
