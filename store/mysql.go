package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eastress/ea-stress-lab/domain"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL-backed Store for multi-process deployments
// where several orchestrator instances share one durable workflow
// record — grounded on the teacher's MySQLStore (graph/store/mysql.go):
// same driver, same connection-pool tuning, narrowed to one table for
// the same reason as SQLiteStore.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn (a standard
// go-sql-driver/mysql DSN) and ensures the workflow_states table exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS workflow_states (
			workflow_id VARCHAR(191) PRIMARY KEY,
			state       LONGTEXT NOT NULL,
			updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *MySQLStore) Save(ctx context.Context, state *domain.WorkflowState) error {
	data, err := domain.Encode(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_states (workflow_id, state) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE state = VALUES(state), updated_at = CURRENT_TIMESTAMP
	`, state.WorkflowID, string(data))
	return err
}

func (s *MySQLStore) Load(ctx context.Context, workflowID string) (*domain.WorkflowState, error) {
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

func (s *MySQLStore) List(ctx context.Context) ([]string, error) {
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

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*MySQLStore)(nil)
