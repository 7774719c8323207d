package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/awantoch/loanscore/model"
)

const decisionColumns = `id, request_id, channel, pipeline, features, prediction, approval_probability, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// decisionArgs flattens d in decisionColumns order. created_at is stored as
// unix nanoseconds so listings keep sub-second ordering.
func decisionArgs(d *model.Decision) ([]any, error) {
	feats, err := json.Marshal(d.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal decision features: %w", err)
	}
	return []any{
		d.ID.String(), d.RequestID, d.Channel, d.Pipeline, string(feats),
		d.Prediction, d.ApprovalProbability, d.CreatedAt.UnixNano(),
	}, nil
}

func scanDecision(row rowScanner) (*model.Decision, error) {
	var d model.Decision
	var id, feats string
	var createdAt int64
	if err := row.Scan(&id, &d.RequestID, &d.Channel, &d.Pipeline, &feats, &d.Prediction, &d.ApprovalProbability, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("stored decision id %q: %w", id, err)
	}
	d.ID = parsed
	if err := json.Unmarshal([]byte(feats), &d.Features); err != nil {
		return nil, fmt.Errorf("stored decision %s features: %w", id, err)
	}
	d.CreatedAt = time.Unix(0, createdAt).UTC()
	return &d, nil
}

func scanDecisions(rows *sql.Rows) ([]*model.Decision, error) {
	defer rows.Close()
	var out []*model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
