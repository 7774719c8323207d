// Package storage keeps the decision audit trail.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/utils"
)

// ErrNotFound is returned when no decision has the requested id.
var ErrNotFound = errors.New("decision not found")

type Storage interface {
	SaveDecision(ctx context.Context, d *model.Decision) error
	GetDecision(ctx context.Context, id uuid.UUID) (*model.Decision, error)
	// ListDecisions returns at most limit decisions, newest first.
	ListDecisions(ctx context.Context, limit int) ([]*model.Decision, error)
	DeleteDecision(ctx context.Context, id uuid.UUID) error
	Close() error
}

// NewStorageFromConfig opens the configured backend. An empty driver means the
// audit trail is disabled and returns a nil Storage.
func NewStorageFromConfig(cfg config.StorageConfig) (Storage, error) {
	wrap := utils.NewErrorWrapper("storage")
	switch cfg.Driver {
	case constants.StorageDriverNone:
		return nil, nil
	case constants.StorageDriverMemory:
		return NewMemoryStorage(constants.MemoryStorageCapacity), nil
	case constants.StorageDriverSQLite:
		return NewSqliteStorage(cfg.DSN)
	case constants.StorageDriverPostgres:
		if cfg.DSN == "" {
			return nil, wrap.Failf("postgres requires a dsn")
		}
		return NewPostgresStorage(cfg.DSN)
	default:
		return nil, wrap.Failf("unsupported storage driver: %s", cfg.Driver)
	}
}

// clampLimit bounds a list request.
func clampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultDecisionLimit
	}
	return min(limit, constants.MaxDecisionLimit)
}
