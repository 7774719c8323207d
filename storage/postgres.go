package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/utils"
)

// PostgresStorage implements Storage on PostgreSQL through lib/pq.
type PostgresStorage struct {
	db *sql.DB
}

var _ Storage = (*PostgresStorage)(nil)

const postgresConnectTimeout = 5 * time.Second

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	wrap := utils.NewErrorWrapper("postgres")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, wrap.Wrapf(err, "open")
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, utils.Errorf("failed to connect to postgres: %w", err)
	}
	_, err = db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	request_id TEXT,
	channel TEXT,
	pipeline TEXT,
	features JSONB,
	prediction INTEGER,
	approval_probability DOUBLE PRECISION,
	created_at BIGINT
);
CREATE INDEX IF NOT EXISTS decisions_created_at ON decisions (created_at);
`)
	if err != nil {
		db.Close()
		return nil, wrap.Wrapf(err, "create decisions table")
	}
	return &PostgresStorage{db: db}, nil
}

func (s *PostgresStorage) SaveDecision(ctx context.Context, d *model.Decision) error {
	args, err := decisionArgs(d)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO decisions (`+decisionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET request_id=EXCLUDED.request_id, channel=EXCLUDED.channel, pipeline=EXCLUDED.pipeline, features=EXCLUDED.features, prediction=EXCLUDED.prediction, approval_probability=EXCLUDED.approval_probability, created_at=EXCLUDED.created_at
`, args...)
	return err
}

func (s *PostgresStorage) GetDecision(ctx context.Context, id uuid.UUID) (*model.Decision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, request_id, channel, pipeline, features::text, prediction, approval_probability, created_at FROM decisions WHERE id=$1`, id.String())
	return scanDecision(row)
}

func (s *PostgresStorage) ListDecisions(ctx context.Context, limit int) ([]*model.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, request_id, channel, pipeline, features::text, prediction, approval_probability, created_at FROM decisions ORDER BY created_at DESC, id LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanDecisions(rows)
}

func (s *PostgresStorage) DeleteDecision(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE id=$1`, id.String())
	return err
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
