// Package function is the serverless entry: a request body string in, a
// statusCode/headers/body envelope out.
package function

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/core"
	"github.com/awantoch/loanscore/features"
	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/utils"
)

// Handler scores lenient request bodies. Absent fields reach the pipeline as
// missing values; whether that fails is up to the pipeline.
type Handler struct {
	svc core.PredictionService
}

func NewHandler(svc core.PredictionService) *Handler {
	return &Handler{svc: svc}
}

// Invoke scores body and wraps the result in a 200 envelope. Any failure is
// returned to the caller unchanged.
func (h *Handler) Invoke(ctx context.Context, body string) (events.APIGatewayProxyResponse, error) {
	var in model.PartialInput
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("decode body: %w", err)
	}
	fv := features.MapPartial(in)
	if missing := fv.Missing(); len(missing) > 0 {
		utils.DebugCtx(ctx, "scoring with missing values", "columns", missing)
	}
	pred, err := h.svc.PredictFeatures(core.WithChannel(ctx, constants.ChannelFunction), fv)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	out, err := json.Marshal(pred)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{constants.HeaderContentType: constants.ContentTypeJSON},
		Body:       string(out),
	}, nil
}

// Handle is the API Gateway proxy entry point.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return events.APIGatewayProxyResponse{}, fmt.Errorf("decode base64 body: %w", err)
		}
		body = string(decoded)
	}
	if id := req.RequestContext.RequestID; id != "" {
		ctx = utils.WithRequestID(ctx, id)
	}
	resp, err := h.Invoke(ctx, body)
	if err != nil {
		utils.ErrorCtx(ctx, "function invocation failed", "error", err)
	}
	return resp, err
}

var (
	initOnce       sync.Once
	defaultHandler *Handler
)

// Default returns the process-wide handler. The config is read from
// LOANSCORE_CONFIG (or the default path) plus environment overrides on the
// first call, and its log section applied; the pipeline itself loads on the first invocation and is then
// reused for the life of the process.
func Default() *Handler {
	initOnce.Do(func() {
		path := os.Getenv(constants.EnvConfigPath)
		if path == "" {
			path = config.DefaultConfigPath
		}
		cfg, err := config.Load(path)
		if err != nil {
			utils.Warn("Failed to load config %s: %v, using environment only", path, err)
			cfg = &config.Config{}
			cfg.ApplyEnv()
			cfg.ApplyDefaults()
		}
		if err := utils.ConfigureLogging(cfg.Log.Options()); err != nil {
			utils.Warn("Ignoring log config: %v", err)
		}
		opts, err := core.BackendOptions(cfg)
		if err != nil {
			utils.Warn("Decision audit and events disabled: %v", err)
			opts = nil
		}
		defaultHandler = NewHandler(core.NewService(core.NewResident(cfg.Artifact), opts...))
	})
	return defaultHandler
}

// Handle invokes the default handler.
func Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return Default().Handle(ctx, req)
}

// Reset drops the default handler so the next call re-initializes (for testing).
func Reset() {
	initOnce = sync.Once{}
	defaultHandler = nil
}
