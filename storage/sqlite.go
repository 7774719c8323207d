package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/utils"
)

// SqliteStorage implements Storage using SQLite as the backend.
type SqliteStorage struct {
	db *sql.DB
}

var _ Storage = (*SqliteStorage)(nil)

func NewSqliteStorage(dsn string) (*SqliteStorage, error) {
	wrap := utils.NewErrorWrapper("sqlite")
	// Only create parent directories if not using in-memory SQLite (":memory:").
	if dsn != ":memory:" && dsn != "" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, utils.Errorf("failed to create db directory %q: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrap.Wrapf(err, "open %s", dsn)
	}
	if dsn == ":memory:" || dsn == "" {
		// every new connection would open a fresh, empty database
		db.SetMaxOpenConns(1)
	}
	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	request_id TEXT,
	channel TEXT,
	pipeline TEXT,
	features JSON,
	prediction INTEGER,
	approval_probability REAL,
	created_at INTEGER
);
CREATE INDEX IF NOT EXISTS decisions_created_at ON decisions (created_at);
`)
	if err != nil {
		db.Close()
		return nil, wrap.Wrapf(err, "create decisions table")
	}
	return &SqliteStorage{db: db}, nil
}

func (s *SqliteStorage) SaveDecision(ctx context.Context, d *model.Decision) error {
	args, err := decisionArgs(d)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO decisions (`+decisionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET request_id=excluded.request_id, channel=excluded.channel, pipeline=excluded.pipeline, features=excluded.features, prediction=excluded.prediction, approval_probability=excluded.approval_probability, created_at=excluded.created_at
`, args...)
	return err
}

func (s *SqliteStorage) GetDecision(ctx context.Context, id uuid.UUID) (*model.Decision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id=?`, id.String())
	return scanDecision(row)
}

func (s *SqliteStorage) ListDecisions(ctx context.Context, limit int) ([]*model.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+decisionColumns+` FROM decisions ORDER BY created_at DESC, id LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanDecisions(rows)
}

func (s *SqliteStorage) DeleteDecision(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE id=?`, id.String())
	return err
}

func (s *SqliteStorage) Close() error {
	return s.db.Close()
}
