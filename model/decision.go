package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Decision is one served prediction as kept in the audit trail and published
// on the event bus. Features are keyed by training column; absent values are null.
type Decision struct {
	ID                  uuid.UUID           `json:"id"`
	RequestID           string              `json:"request_id,omitempty"`
	Channel             string              `json:"channel,omitempty"`
	Pipeline            string              `json:"pipeline,omitempty"`
	Features            map[string]*float64 `json:"features"`
	Prediction          int                 `json:"prediction"`
	ApprovalProbability float64             `json:"approval_probability"`
	CreatedAt           time.Time           `json:"created_at"`
}

// NewDecision records pred for fv with a fresh id and timestamp.
func NewDecision(fv FeatureVector, pred Prediction) *Decision {
	feats := make(map[string]*float64, len(fv.Columns))
	for i, col := range fv.Columns {
		if i >= len(fv.Values) || math.IsNaN(fv.Values[i]) {
			feats[col] = nil
			continue
		}
		v := fv.Values[i]
		feats[col] = &v
	}
	return &Decision{
		ID:                  uuid.New(),
		Features:            feats,
		Prediction:          pred.Prediction,
		ApprovalProbability: pred.ApprovalProbability,
		CreatedAt:           time.Now().UTC(),
	}
}

// Outcome returns the response body the decision was served with.
func (d *Decision) Outcome() Prediction {
	return Prediction{Prediction: d.Prediction, ApprovalProbability: d.ApprovalProbability}
}
