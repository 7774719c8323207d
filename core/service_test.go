package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/event"
	"github.com/awantoch/loanscore/features"
	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/pipeline"
	"github.com/awantoch/loanscore/storage"
	"github.com/awantoch/loanscore/testutil"
	"github.com/awantoch/loanscore/utils"
)

// recordingPipeline returns fixed outputs and remembers every matrix it receives.
type recordingPipeline struct {
	mu        sync.Mutex
	label     int
	proba     []float64
	err       error
	probaErr  error
	predictIn [][][]float64
	probaIn   [][][]float64
	extraRows bool
}

func (p *recordingPipeline) Predict(rows [][]float64) ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predictIn = append(p.predictIn, rows)
	if p.err != nil {
		return nil, p.err
	}
	if p.extraRows {
		return []int{p.label, p.label}, nil
	}
	return []int{p.label}, nil
}

func (p *recordingPipeline) PredictProba(rows [][]float64) ([][]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probaIn = append(p.probaIn, rows)
	if p.probaErr != nil {
		return nil, p.probaErr
	}
	return [][]float64{p.proba}, nil
}

func serviceFor(p pipeline.Pipeline, opts ...Option) *Service {
	return NewServiceFunc(func(context.Context) (pipeline.Pipeline, error) { return p, nil }, opts...)
}

func TestPredict_SameRowToBothCalls(t *testing.T) {
	fake := &recordingPipeline{label: 1, proba: []float64{0.2, 0.8}}
	svc := serviceFor(fake)

	pred, err := svc.Predict(context.Background(), testutil.ApprovedInput())
	require.NoError(t, err)
	assert.Equal(t, model.Prediction{Prediction: 1, ApprovalProbability: 0.8}, pred)

	require.Len(t, fake.predictIn, 1)
	require.Len(t, fake.probaIn, 1)
	assert.Equal(t, fake.predictIn[0], fake.probaIn[0])
	assert.Equal(t, [][]float64{{50000, 3.5, 1.2, 750, 10, 2000}}, fake.predictIn[0])
}

func TestPredict_ProbabilityIsColumnOne(t *testing.T) {
	fake := &recordingPipeline{label: 0, proba: []float64{0.7, 0.3}}
	pred, err := serviceFor(fake).Predict(context.Background(), testutil.RejectedInput())
	require.NoError(t, err)
	assert.Equal(t, 0, pred.Prediction)
	assert.Equal(t, 0.3, pred.ApprovalProbability)
}

func TestPredict_ErrorsPropagate(t *testing.T) {
	boom := errors.New("model exploded")

	_, err := serviceFor(&recordingPipeline{err: boom}).Predict(context.Background(), testutil.ApprovedInput())
	assert.ErrorIs(t, err, boom)

	fake := &recordingPipeline{label: 1, probaErr: boom}
	_, err = serviceFor(fake).Predict(context.Background(), testutil.ApprovedInput())
	assert.ErrorIs(t, err, boom)

	_, err = serviceFor(&recordingPipeline{label: 1, proba: []float64{1}}).Predict(context.Background(), testutil.ApprovedInput())
	assert.ErrorIs(t, err, pipeline.ErrShapeMismatch)

	_, err = serviceFor(&recordingPipeline{label: 1, proba: []float64{0, 1}, extraRows: true}).Predict(context.Background(), testutil.ApprovedInput())
	assert.ErrorIs(t, err, pipeline.ErrShapeMismatch)

	unavailable := NewServiceFunc(func(context.Context) (pipeline.Pipeline, error) { return nil, boom })
	_, err = unavailable.Predict(context.Background(), testutil.ApprovedInput())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, unavailable.Ready(context.Background()), boom)
}

func TestPredictFeatures_RejectsForeignColumns(t *testing.T) {
	fake := &recordingPipeline{label: 1, proba: []float64{0, 1}}
	fv := features.Map(testutil.ApprovedInput())
	fv.Columns[0], fv.Columns[1] = fv.Columns[1], fv.Columns[0]

	_, err := serviceFor(fake).PredictFeatures(context.Background(), fv)
	assert.ErrorIs(t, err, pipeline.ErrFeatureNames)
	assert.Empty(t, fake.predictIn)
}

func TestPredictFeatures_MissingValuesReachPipeline(t *testing.T) {
	fake := &recordingPipeline{label: 0, proba: []float64{0.6, 0.4}}
	fv := features.MapPartial(model.PartialInput{})

	_, err := serviceFor(fake).PredictFeatures(context.Background(), fv)
	require.NoError(t, err)
	for _, v := range fake.predictIn[0][0] {
		assert.True(t, math.IsNaN(v))
	}
}

func TestService_RealPipeline(t *testing.T) {
	path := testutil.StackedArtifact(t, false)
	cfg := &config.Config{Artifact: config.ArtifactConfig{URL: path}}
	svc, err := NewServiceFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	pred, err := svc.Predict(context.Background(), testutil.ApprovedInput())
	require.NoError(t, err)
	assert.Equal(t, constants.ClassApproved, pred.Prediction)
	assert.InDelta(t, 0.8639, pred.ApprovalProbability, 1e-3)

	again, err := svc.Predict(context.Background(), testutil.ApprovedInput())
	require.NoError(t, err)
	assert.Equal(t, pred, again)

	_, err = svc.PredictFeatures(context.Background(), features.MapPartial(model.PartialInput{}))
	assert.ErrorIs(t, err, pipeline.ErrMissingValue)

	info, err := svc.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, features.Columns(), info.FeatureNames)
	assert.NoError(t, svc.Ready(context.Background()))
}

func TestService_ImputingPipeline(t *testing.T) {
	path := testutil.StackedArtifact(t, true)
	svc, err := NewServiceFromConfig(context.Background(), &config.Config{Artifact: config.ArtifactConfig{URL: path}})
	require.NoError(t, err)

	pred, err := svc.PredictFeatures(context.Background(), features.MapPartial(model.PartialInput{}))
	require.NoError(t, err)
	assert.Equal(t, constants.ClassRejected, pred.Prediction)
	assert.InDelta(t, 0.3100, pred.ApprovalProbability, 1e-3)
}

func TestNewServiceFromConfig_Errors(t *testing.T) {
	_, err := NewServiceFromConfig(context.Background(), &config.Config{Artifact: config.ArtifactConfig{URL: "/nonexistent/pipeline.json"}})
	assert.Error(t, err)

	doc := testutil.StackedDocument(false)
	names := features.Columns()
	names[2], names[3] = names[3], names[2]
	doc["feature_names"] = names
	path := testutil.WriteArtifact(t, "swapped.json", mustJSON(t, doc))
	_, err = NewServiceFromConfig(context.Background(), &config.Config{Artifact: config.ArtifactConfig{URL: path}})
	assert.ErrorIs(t, err, pipeline.ErrFeatureNames)
}

func TestInfo_NonDescribingPipeline(t *testing.T) {
	info, err := serviceFor(&recordingPipeline{}).Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, info.NumFeatures)
}

// failingStorage rejects every write.
type failingStorage struct{ storage.MemoryStorage }

func (*failingStorage) SaveDecision(context.Context, *model.Decision) error {
	return errors.New("disk full")
}

func TestPredict_AuditsAndPublishesDecision(t *testing.T) {
	store := storage.NewMemoryStorage(10)
	bus := event.NewInProcEventBus()
	defer bus.Close()
	published := make(chan any, 1)
	require.NoError(t, bus.Subscribe(context.Background(), "decisions.test", func(p any) { published <- p }))

	fake := &recordingPipeline{label: 1, proba: []float64{0.1, 0.9}}
	svc := NewServiceFunc(func(context.Context) (pipeline.Pipeline, error) { return fake, nil },
		WithStorage(store), WithEventBus(bus, "decisions.test"))

	ctx := WithChannel(utils.WithRequestID(context.Background(), "req-42"), constants.ChannelHTTP)
	pred, err := svc.Predict(ctx, testutil.ApprovedInput())
	require.NoError(t, err)

	decisions, err := svc.ListDecisions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	d := decisions[0]
	assert.Equal(t, "req-42", d.RequestID)
	assert.Equal(t, constants.ChannelHTTP, d.Channel)
	assert.Equal(t, pred, d.Outcome())
	require.NotNil(t, d.Features[constants.ColumnCIBILScore])
	assert.Equal(t, 750.0, *d.Features[constants.ColumnCIBILScore])

	got, err := svc.GetDecision(ctx, d.ID.String())
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	select {
	case p := <-published:
		m, ok := p.(map[string]any)
		require.True(t, ok, "payload %T", p)
		assert.Equal(t, d.ID.String(), m["id"])
		assert.Equal(t, float64(1), m["prediction"])
	case <-time.After(2 * time.Second):
		t.Fatal("decision was not published")
	}
}

func TestPredict_AuditFailureKeepsPrediction(t *testing.T) {
	fake := &recordingPipeline{label: 0, proba: []float64{0.8, 0.2}}
	svc := NewServiceFunc(func(context.Context) (pipeline.Pipeline, error) { return fake, nil },
		WithStorage(&failingStorage{}))
	pred, err := svc.Predict(context.Background(), testutil.RejectedInput())
	require.NoError(t, err)
	assert.Equal(t, model.Prediction{Prediction: 0, ApprovalProbability: 0.2}, pred)
}

func TestDecisions_Disabled(t *testing.T) {
	svc := serviceFor(&recordingPipeline{label: 1, proba: []float64{0, 1}})
	_, err := svc.ListDecisions(context.Background(), 10)
	assert.ErrorIs(t, err, ErrAuditDisabled)
	_, err = svc.GetDecision(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrAuditDisabled)
	assert.ErrorIs(t, svc.DeleteDecision(context.Background(), uuid.NewString()), ErrAuditDisabled)
	assert.NoError(t, svc.Close())
}

func TestDeleteDecision(t *testing.T) {
	ctx := context.Background()
	svc := serviceFor(&recordingPipeline{label: 0, proba: []float64{0.7, 0.3}}, WithStorage(storage.NewMemoryStorage(10)))
	_, err := svc.Predict(ctx, testutil.RejectedInput())
	require.NoError(t, err)
	decisions, err := svc.ListDecisions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	id := decisions[0].ID.String()

	require.NoError(t, svc.DeleteDecision(ctx, id))
	_, err = svc.GetDecision(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteDecision(ctx, id), storage.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteDecision(ctx, "not-a-uuid"), ErrInvalidDecisionID)
}

func TestGetDecision_Errors(t *testing.T) {
	svc := serviceFor(&recordingPipeline{})
	svc.store = storage.NewMemoryStorage(1)
	_, err := svc.GetDecision(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidDecisionID)
	_, err = svc.GetDecision(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewServiceFromConfig_Backends(t *testing.T) {
	path := testutil.StackedArtifact(t, false)
	cfg := &config.Config{
		Artifact: config.ArtifactConfig{URL: path},
		Storage:  config.StorageConfig{Driver: constants.StorageDriverSQLite, DSN: ":memory:"},
		Event:    config.EventConfig{Driver: constants.EventDriverMemory, Topic: constants.TopicDecisions},
	}
	svc, err := NewServiceFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()
	require.NotNil(t, svc.store)
	require.NotNil(t, svc.bus)

	_, err = svc.Predict(WithChannel(context.Background(), constants.ChannelCLI), testutil.RejectedInput())
	require.NoError(t, err)
	decisions, err := svc.ListDecisions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "stacked_ensemble_pipeline", decisions[0].Pipeline)
	assert.Equal(t, constants.ChannelCLI, decisions[0].Channel)

	cfg.Storage = config.StorageConfig{Driver: "mongo"}
	_, err = NewServiceFromConfig(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported storage driver")

	cfg.Storage = config.StorageConfig{}
	cfg.Event = config.EventConfig{Driver: "kafka"}
	_, err = NewServiceFromConfig(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported event bus driver")
}
