package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/utils"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanscore_http_requests_total",
			Help: "Total number of HTTP requests received.",
		},
		[]string{"handler", "method", "code"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loanscore_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loanscore_predictions_total",
			Help: "Predictions served, by predicted class label.",
		},
		[]string{"label"},
	)
	predictionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loanscore_prediction_errors_total",
			Help: "Predictions that failed inside the pipeline.",
		},
	)
	approvalProbability = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loanscore_approval_probability",
			Help:    "Distribution of the approved-class probability.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, predictionsTotal, predictionErrorsTotal, approvalProbability)
}

// RecordPrediction counts a served prediction.
func RecordPrediction(label int, probability float64) {
	predictionsTotal.WithLabelValues(strconv.Itoa(label)).Inc()
	approvalProbability.Observe(probability)
}

// RecordPredictionError counts a failed prediction.
func RecordPredictionError() {
	predictionErrorsTotal.Inc()
}

// Init sets up the tracer provider. Supported exporters: "stdout", "otlp".
// An empty exporter leaves tracing disabled. The returned func flushes and
// stops the provider; it is never nil.
func Init(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var exp sdktrace.SpanExporter
	var err error
	switch strings.ToLower(cfg.Exporter) {
	case constants.TracingNone:
		return noop, nil
	case constants.TracingStdout:
		exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case constants.TracingOTLP:
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	default:
		return noop, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
	if err != nil {
		return noop, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = constants.DefaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		utils.Warn("Failed to build tracing resource: %v", err)
		res = resource.Default()
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	utils.Debug("Tracing enabled with %s exporter", cfg.Exporter)
	return tp.Shutdown, nil
}

// WrapHandler applies otelhttp tracing and Prometheus request metrics.
func WrapHandler(name string, next http.Handler) http.Handler {
	h := otelhttp.NewHandler(next, name)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rw, r)
		httpRequestsTotal.WithLabelValues(name, r.Method, strconv.Itoa(rw.status)).Inc()
		httpRequestDuration.WithLabelValues(name, r.Method).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsHandler returns the Prometheus metrics endpoint handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
