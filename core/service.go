// Package core composes the feature mapper and the resident pipeline into the
// prediction service every transport calls.
package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/awantoch/loanscore/blob"
	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/event"
	"github.com/awantoch/loanscore/features"
	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/pipeline"
	"github.com/awantoch/loanscore/storage"
	"github.com/awantoch/loanscore/telemetry"
	"github.com/awantoch/loanscore/utils"
)

var (
	// ErrAuditDisabled is returned by decision lookups when no storage is configured.
	ErrAuditDisabled = errors.New("decision audit trail is disabled")
	// ErrInvalidDecisionID is returned for ids that are not UUIDs.
	ErrInvalidDecisionID = errors.New("invalid decision id")
)

// PredictionService is the surface shared by HTTP, the function handler, MCP and the CLI.
type PredictionService interface {
	Predict(ctx context.Context, in model.UserInput) (model.Prediction, error)
	PredictFeatures(ctx context.Context, fv model.FeatureVector) (model.Prediction, error)
	Info(ctx context.Context) (pipeline.Info, error)
	Ready(ctx context.Context) error
	ListDecisions(ctx context.Context, limit int) ([]*model.Decision, error)
	GetDecision(ctx context.Context, id string) (*model.Decision, error)
}

// PipelineFunc returns the pipeline to evaluate, loading it on first use.
type PipelineFunc func(ctx context.Context) (pipeline.Pipeline, error)

// Service is the default PredictionService.
type Service struct {
	pipeline PipelineFunc
	store    storage.Storage
	bus      event.EventBus
	topic    string
}

var _ PredictionService = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithStorage keeps every served decision in store.
func WithStorage(store storage.Storage) Option {
	return func(s *Service) { s.store = store }
}

// WithEventBus publishes every served decision on topic, or on the default
// decisions topic when topic is empty.
func WithEventBus(bus event.EventBus, topic string) Option {
	return func(s *Service) {
		s.bus = bus
		if topic != "" {
			s.topic = topic
		}
	}
}

// NewService serves predictions from a resident pipeline.
func NewService(r *pipeline.Resident, opts ...Option) *Service {
	return NewServiceFunc(func(ctx context.Context) (pipeline.Pipeline, error) {
		p, err := r.Get(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, opts...)
}

// NewServiceFunc serves predictions from any pipeline source.
func NewServiceFunc(fn PipelineFunc, opts ...Option) *Service {
	s := &Service{pipeline: fn, topic: constants.TopicDecisions}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewResident builds the resident pipeline described by cfg. Nothing is fetched
// until the first Get.
func NewResident(cfg config.ArtifactConfig) *pipeline.Resident {
	return pipeline.NewResident(func(ctx context.Context) (*pipeline.Compiled, error) {
		return LoadArtifact(ctx, cfg)
	})
}

// LoadArtifact fetches and compiles the artifact and checks its columns
// against the feature mapping.
func LoadArtifact(ctx context.Context, cfg config.ArtifactConfig) (*pipeline.Compiled, error) {
	store, err := blob.NewStore(ctx, cfg.URL, cfg.Region)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.Load(ctx, store, cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := p.CheckFeatures(features.Columns()); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", cfg.URL, err)
	}
	return p, nil
}

// NewServiceFromConfig loads the artifact eagerly so a bad artifact fails startup,
// then opens the configured audit storage and event bus.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config) (*Service, error) {
	resident := NewResident(cfg.Artifact)
	if _, err := resident.Get(ctx); err != nil {
		return nil, utils.Errorf("load pipeline: %w", err)
	}
	utils.Info("Pipeline loaded from %s", cfg.Artifact.URL)
	opts, err := BackendOptions(cfg)
	if err != nil {
		return nil, err
	}
	return NewService(resident, opts...), nil
}

// BackendOptions opens the audit storage and event bus named by cfg.
func BackendOptions(cfg *config.Config) ([]Option, error) {
	var opts []Option
	store, err := storage.NewStorageFromConfig(cfg.Storage)
	if err != nil {
		return nil, utils.Errorf("open decision storage: %w", err)
	}
	if store != nil {
		utils.Info("Auditing decisions to %s storage", cfg.Storage.Driver)
		opts = append(opts, WithStorage(store))
	}
	bus, err := event.NewEventBusFromConfig(cfg.Event)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, utils.Errorf("open event bus: %w", err)
	}
	if bus != nil {
		utils.Info("Publishing decisions to %s topic %s", cfg.Event.Driver, cfg.Event.Topic)
		opts = append(opts, WithEventBus(bus, cfg.Event.Topic))
	}
	return opts, nil
}

// Predict maps a validated input and scores it.
func (s *Service) Predict(ctx context.Context, in model.UserInput) (model.Prediction, error) {
	return s.PredictFeatures(ctx, features.Map(in))
}

// PredictFeatures scores one feature vector. Predict and PredictProba receive
// the same single-row matrix; the probability is the positive-class column.
func (s *Service) PredictFeatures(ctx context.Context, fv model.FeatureVector) (model.Prediction, error) {
	p, err := s.pipeline(ctx)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("pipeline unavailable: %w", err)
	}
	if !slices.Equal(fv.Columns, features.Columns()) || fv.Len() != len(fv.Columns) {
		return model.Prediction{}, fmt.Errorf("%w: feature vector columns %v", pipeline.ErrFeatureNames, fv.Columns)
	}

	rows := [][]float64{fv.Row()}
	labels, err := p.Predict(rows)
	if err != nil {
		telemetry.RecordPredictionError()
		return model.Prediction{}, fmt.Errorf("predict: %w", err)
	}
	probas, err := p.PredictProba(rows)
	if err != nil {
		telemetry.RecordPredictionError()
		return model.Prediction{}, fmt.Errorf("predict proba: %w", err)
	}
	if len(labels) != 1 || len(probas) != 1 || len(probas[0]) <= constants.PositiveClassIndex {
		telemetry.RecordPredictionError()
		return model.Prediction{}, fmt.Errorf("%w: pipeline returned %d labels and %d probability rows", pipeline.ErrShapeMismatch, len(labels), len(probas))
	}

	pred := model.Prediction{
		Prediction:          labels[0],
		ApprovalProbability: probas[0][constants.PositiveClassIndex],
	}
	telemetry.RecordPrediction(pred.Prediction, pred.ApprovalProbability)
	utils.DebugCtx(ctx, "prediction served", "prediction", pred.Prediction, "approval_probability", pred.ApprovalProbability)
	s.record(ctx, p, fv, pred)
	return pred, nil
}

// record audits and publishes a served decision. Failures are logged and never
// change the prediction returned to the caller.
func (s *Service) record(ctx context.Context, p pipeline.Pipeline, fv model.FeatureVector, pred model.Prediction) {
	if s.store == nil && s.bus == nil {
		return
	}
	d := model.NewDecision(fv, pred)
	d.RequestID, _ = utils.RequestIDFromContext(ctx)
	d.Channel = ChannelFromContext(ctx)
	if desc, ok := p.(interface{ Info() pipeline.Info }); ok {
		d.Pipeline = desc.Info().Name
	}
	if s.store != nil {
		if err := s.store.SaveDecision(ctx, d); err != nil {
			utils.WarnCtx(ctx, "decision audit failed", "decision_id", d.ID.String(), "error", err)
		}
	}
	if s.bus != nil {
		if err := s.bus.Publish(s.topic, d); err != nil {
			utils.WarnCtx(ctx, "decision publish failed", "decision_id", d.ID.String(), "topic", s.topic, "error", err)
		}
	}
}

// Info describes the loaded pipeline.
func (s *Service) Info(ctx context.Context) (pipeline.Info, error) {
	p, err := s.pipeline(ctx)
	if err != nil {
		return pipeline.Info{}, err
	}
	if d, ok := p.(interface{ Info() pipeline.Info }); ok {
		return d.Info(), nil
	}
	return pipeline.Info{FeatureNames: features.Columns(), NumFeatures: len(features.Schema)}, nil
}

// Ready reports whether the pipeline is loaded.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.pipeline(ctx)
	return err
}

// ListDecisions returns the most recent audited decisions, newest first.
func (s *Service) ListDecisions(ctx context.Context, limit int) ([]*model.Decision, error) {
	if s.store == nil {
		return nil, ErrAuditDisabled
	}
	return s.store.ListDecisions(ctx, limit)
}

// GetDecision looks up one audited decision.
func (s *Service) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	if s.store == nil {
		return nil, ErrAuditDisabled
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecisionID, id)
	}
	return s.store.GetDecision(ctx, parsed)
}

// DeleteDecision removes one audited decision. Unknown ids are ErrNotFound.
func (s *Service) DeleteDecision(ctx context.Context, id string) error {
	d, err := s.GetDecision(ctx, id)
	if err != nil {
		return err
	}
	return s.store.DeleteDecision(ctx, d.ID)
}

// Close releases the audit storage and event bus.
func (s *Service) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.bus != nil {
		errs = append(errs, s.bus.Close())
	}
	return errors.Join(errs...)
}
