package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/eastress/ea-stress-lab/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file, WAL-mode Store, grounded on the
// teacher's SQLiteStore (graph/store/sqlite.go) — same driver, same
// pragma sequence, narrowed to one table since WorkflowState carries
// its own stage history rather than needing a separate step log.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path
// and ensures the workflow_states table exists. path may be ":memory:"
// for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS workflow_states (
			workflow_id TEXT PRIMARY KEY,
			state       TEXT NOT NULL,
			updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, state *domain.WorkflowState) error {
	data, err := domain.Encode(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_states (workflow_id, state, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(workflow_id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP
	`, state.WorkflowID, string(data))
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, workflowID string) (*domain.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM workflow_states WHERE workflow_id = ?`, workflowID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.Decode([]byte(raw))
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT workflow_id FROM workflow_states`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
