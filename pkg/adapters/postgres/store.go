// Package postgres stores graph snapshots in a PostgreSQL table, one row per
// graph, with the snapshot kept as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/lib/pq"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "nodeflow_graphs"

// Store implements ports.SnapshotStore on PostgreSQL.
type Store struct {
	db    *sql.DB
	table string
}

type Option func(*Store)

// WithTable overrides the table name. It is quoted as an identifier.
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// Open connects to dsn, checks the connection and ensures the table exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewFromDB(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an existing connection pool. The table is not created.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) quotedTable() string {
	return pq.QuoteIdentifier(s.table)
}

// Migrate creates the snapshot table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	revision   BIGINT NOT NULL,
	snapshot   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.quotedTable())
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Save upserts the snapshot row of graphID.
func (s *Store) Save(ctx context.Context, graphID string, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, revision, snapshot, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET revision = EXCLUDED.revision, snapshot = EXCLUDED.snapshot, updated_at = now()`,
		s.quotedTable())
	if _, err := s.db.ExecContext(ctx, query, graphID, int64(state.Revision), data); err != nil {
		return fmt.Errorf("failed to save graph %s: %w", graphID, err)
	}
	return nil
}

// Load reads the snapshot row of graphID.
func (s *Store) Load(ctx context.Context, graphID string) (*domain.State, error) {
	query := fmt.Sprintf(`SELECT snapshot FROM %s WHERE id = $1`, s.quotedTable())

	var data []byte
	err := s.db.QueryRowContext(ctx, query, graphID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGraphNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", graphID, err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph state: %w", err)
	}
	return state.Normalize(), nil
}

// Delete removes the snapshot row of graphID.
func (s *Store) Delete(ctx context.Context, graphID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.quotedTable())
	if _, err := s.db.ExecContext(ctx, query, graphID); err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", graphID, err)
	}
	return nil
}

// List returns every stored graph ID, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, s.quotedTable())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	defer rows.Close()

	graphs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan graph id: %w", err)
		}
		graphs = append(graphs, id)
	}
	return graphs, rows.Err()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
