// Package http serves predictions over a long-lived HTTP server.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/core"
	"github.com/awantoch/loanscore/storage"
	"github.com/awantoch/loanscore/telemetry"
	"github.com/awantoch/loanscore/utils"
)

// Options tunes the handler built by NewHandler.
type Options struct {
	MaxBodyBytes int64
}

// NewHandler returns the routed handler for svc: /predict, /healthz, /metrics
// and one GET route per read-only registered operation.
func NewHandler(svc core.PredictionService, opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}
	mux := http.NewServeMux()

	mux.Handle(constants.PathPredict, telemetry.WrapHandler(constants.OpPredict, predictHandler(svc, opts.MaxBodyBytes)))

	for _, op := range core.GetAllOperations() {
		if op.HTTPMethod != http.MethodGet || op.HTTPPath == "" {
			continue
		}
		mux.Handle(op.HTTPPath, telemetry.WrapHandler(op.ID, operationHandler(svc, op)))
	}

	mux.HandleFunc(constants.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ready(r.Context()); err != nil {
			utils.ErrorCtx(r.Context(), "pipeline not ready", "error", err)
			utils.WriteHTTPDetail(w, http.StatusServiceUnavailable, constants.ResponseServiceUnready)
			return
		}
		w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
		if _, err := w.Write([]byte(constants.HealthCheckResponse)); err != nil {
			utils.Error(constants.LogFailedWriteHealthCheck, err)
		}
	})
	mux.Handle(constants.PathMetrics, telemetry.MetricsHandler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteHTTPDetail(w, http.StatusNotFound, constants.ResponseNotFound)
	})

	return withRequestID(mux)
}

// withRequestID tags each request context with the incoming X-Request-ID or a new UUID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(constants.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(constants.HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(utils.WithRequestID(r.Context(), id)))
	})
}

// predictHandler: POST /predict
func predictHandler(svc core.PredictionService, maxBody int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodGuard(w, r, http.MethodPost) {
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				utils.WriteHTTPDetail(w, http.StatusRequestEntityTooLarge, constants.ResponseBodyTooLarge)
				return
			}
			utils.ErrorCtx(r.Context(), "read request body", "error", err)
			utils.WriteHTTPDetail(w, http.StatusBadRequest, constants.MsgJSONInvalid)
			return
		}

		in, err := DecodeUserInput(body)
		if err != nil {
			var verrs ValidationErrors
			if errors.As(err, &verrs) {
				utils.DebugCtx(r.Context(), "request validation failed", "errors", verrs.Error())
				_ = utils.WriteHTTPJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": verrs})
				return
			}
			utils.ErrorCtx(r.Context(), "decode request", "error", err)
			utils.WriteHTTPDetail(w, http.StatusInternalServerError, constants.ResponseInternalError)
			return
		}

		pred, err := svc.Predict(core.WithChannel(r.Context(), constants.ChannelHTTP), in)
		if err != nil {
			utils.ErrorCtx(r.Context(), "prediction failed", "error", err)
			utils.WriteHTTPDetail(w, http.StatusInternalServerError, constants.ResponseInternalError)
			return
		}
		if err := utils.WriteHTTPJSON(w, http.StatusOK, pred); err != nil {
			utils.ErrorCtx(r.Context(), "write prediction", "error", err)
		}
	}
}

// operationHandler serves a read-only operation as GET <path>. Arguments come
// from path wildcards and query parameters.
func operationHandler(svc core.PredictionService, op *core.OperationDefinition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodGuard(w, r, http.MethodGet) {
			return
		}
		args := op.NewArgs()
		if verrs := bindArgs(r, args); len(verrs) > 0 {
			_ = utils.WriteHTTPJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": verrs})
			return
		}
		out, err := op.Invoke(r.Context(), svc, args)
		if err != nil {
			writeOperationError(w, r, op, err)
			return
		}
		if err := utils.WriteHTTPJSON(w, http.StatusOK, out); err != nil {
			utils.ErrorCtx(r.Context(), "write response", "operation", op.ID, "error", err)
		}
	}
}

func writeOperationError(w http.ResponseWriter, r *http.Request, op *core.OperationDefinition, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		utils.WriteHTTPDetail(w, http.StatusNotFound, constants.ResponseDecisionNotFound)
	case errors.Is(err, core.ErrAuditDisabled):
		utils.WriteHTTPDetail(w, http.StatusNotFound, constants.ResponseAuditDisabled)
	case errors.Is(err, core.ErrInvalidDecisionID):
		id := r.PathValue("id")
		_ = utils.WriteHTTPJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": ValidationErrors{{
			Loc:   []any{constants.ValidationLocPath, "id"},
			Msg:   constants.MsgUUIDParsing,
			Type:  constants.ValidationTypeUUID,
			Input: id,
		}}})
	default:
		utils.ErrorCtx(r.Context(), "operation failed", "operation", op.ID, "error", err)
		utils.WriteHTTPDetail(w, http.StatusInternalServerError, constants.ResponseInternalError)
	}
}

// methodGuard answers 405 unless the request uses one of allowed.
func methodGuard(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	for _, method := range allowed {
		if r.Method == method {
			return true
		}
	}
	w.Header().Set("Allow", allowed[0])
	utils.WriteHTTPDetail(w, http.StatusMethodNotAllowed, constants.ResponseMethodNotAllowed)
	return false
}

// Server is the long-lived prediction server.
type Server struct {
	cfg      *config.Config
	srv      *http.Server
	shutdown func(context.Context) error
}

// NewServer wires svc behind the configured listen address.
func NewServer(cfg *config.Config, svc core.PredictionService) *Server {
	handler := NewHandler(svc, Options{MaxBodyBytes: cfg.HTTP.MaxBodyBytes})
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.HTTP.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: constants.DefaultReadTimeout * time.Second,
			ErrorLog:          log.New(&utils.LoggerWriter{Fn: utils.Warn, Prefix: "http: "}, "", 0),
		},
	}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		utils.Info("Serving predictions on http://%s", ln.Addr())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(s.cfg.HTTP.ShutdownSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	utils.Info("Shutting down HTTP server")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartServer loads the pipeline, starts tracing and serves until ctx is done.
// A pipeline that cannot be loaded aborts startup.
func StartServer(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			utils.Warn("Tracing shutdown: %v", err)
		}
	}()

	svc, err := core.NewServiceFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			utils.Warn("Closing decision backends: %v", err)
		}
	}()
	ln, err := net.Listen("tcp", cfg.HTTP.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTP.Addr(), err)
	}
	return NewServer(cfg, svc).Serve(ctx, ln)
}
