package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"gramops/pkg/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS operations (
	id               TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	target           TEXT NOT NULL,
	source_group     TEXT NOT NULL DEFAULT '',
	message_template TEXT NOT NULL DEFAULT '',
	total_items      INTEGER NOT NULL DEFAULT 0,
	completed_items  INTEGER NOT NULL DEFAULT 0,
	failed_items     INTEGER NOT NULL DEFAULT 0,
	error_count      INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	cursor           TEXT NOT NULL DEFAULT '',
	last_error       TEXT NOT NULL DEFAULT '',
	require_proxy    INTEGER NOT NULL DEFAULT 0,
	profile          TEXT NOT NULL DEFAULT '',
	started_at       DATETIME,
	last_checkpoint  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status);
`

// SQLiteStore implements OperationStore with SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the operation database at the given path.
// Pass ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time keeps per-record upserts atomic under SQLite
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Create persists a new operation record.
func (s *SQLiteStore) Create(ctx context.Context, state *models.OperationState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (
			id, kind, target, source_group, message_template,
			total_items, completed_items, failed_items, error_count,
			status, cursor, last_error, require_proxy, profile,
			started_at, last_checkpoint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.ID, string(state.Kind), state.Target, state.SourceGroup, state.MessageTemplate,
		state.TotalItems, state.CompletedItems, state.FailedItems, state.ErrorCount,
		string(state.Status), state.Cursor, state.LastError, boolToInt(state.RequireProxy), state.Profile,
		state.StartedAt, state.LastCheckpoint,
	)
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}
	return nil
}

// Update upserts the record identified by state.ID.
func (s *SQLiteStore) Update(ctx context.Context, state *models.OperationState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (
			id, kind, target, source_group, message_template,
			total_items, completed_items, failed_items, error_count,
			status, cursor, last_error, require_proxy, profile,
			started_at, last_checkpoint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_items = excluded.total_items,
			completed_items = excluded.completed_items,
			failed_items = excluded.failed_items,
			error_count = excluded.error_count,
			status = excluded.status,
			cursor = excluded.cursor,
			last_error = excluded.last_error,
			last_checkpoint = excluded.last_checkpoint`,
		state.ID, string(state.Kind), state.Target, state.SourceGroup, state.MessageTemplate,
		state.TotalItems, state.CompletedItems, state.FailedItems, state.ErrorCount,
		string(state.Status), state.Cursor, state.LastError, boolToInt(state.RequireProxy), state.Profile,
		state.StartedAt, state.LastCheckpoint,
	)
	if err != nil {
		return fmt.Errorf("failed to update operation %s: %w", state.ID, err)
	}
	return nil
}

const selectColumns = `id, kind, target, source_group, message_template,
	total_items, completed_items, failed_items, error_count,
	status, cursor, last_error, require_proxy, profile,
	started_at, last_checkpoint`

// Get retrieves one operation by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.OperationState, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM operations WHERE id = ?", id)

	state, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return state, nil
}

// ListByStatus retrieves operations matching any of the given statuses,
// oldest first.
func (s *SQLiteStore) ListByStatus(ctx context.Context, statuses ...models.OperationStatus) ([]*models.OperationState, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM operations WHERE status IN ("+placeholders+") ORDER BY started_at ASC",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var operations []*models.OperationState
	for rows.Next() {
		state, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		operations = append(operations, state)
	}
	return operations, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*models.OperationState, error) {
	var (
		state        models.OperationState
		kind, status string
		requireProxy int
		startedAt    sql.NullTime
		checkpoint   sql.NullTime
	)

	err := row.Scan(
		&state.ID, &kind, &state.Target, &state.SourceGroup, &state.MessageTemplate,
		&state.TotalItems, &state.CompletedItems, &state.FailedItems, &state.ErrorCount,
		&status, &state.Cursor, &state.LastError, &requireProxy, &state.Profile,
		&startedAt, &checkpoint,
	)
	if err != nil {
		return nil, err
	}

	state.Kind = models.OperationKind(kind)
	state.Status = models.OperationStatus(status)
	state.RequireProxy = requireProxy != 0
	if startedAt.Valid {
		state.StartedAt = startedAt.Time
	}
	if checkpoint.Valid {
		state.LastCheckpoint = checkpoint.Time
	}
	return &state, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
