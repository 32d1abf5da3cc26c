package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"macpulse/internal/config"
	"macpulse/internal/transmission"
)

// MeterName is the instrumentation scope of every tracer and meter
const MeterName = "macpulse"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	// PrometheusHTTP serves the scrape endpoint; nil when metrics are disabled
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel initializes tracing and metrics. A disabled configuration
// yields no-op providers so callers never need nil checks.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	providers := &OTelProviders{
		Tracer: tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:  metricnoop.NewMeterProvider().Meter(MeterName),
		Logger: logger,
	}
	if !cfg.Enabled {
		logger.InfoContext(ctx, "OpenTelemetry disabled")
		return providers, nil
	}

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	if err := initializeTracing(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := initializeMetrics(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return providers, nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(cfg config.TelemetryConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)
	return nil
}

// initializeMetrics sets up a Prometheus-backed meter provider on a private
// registry
func initializeMetrics(cfg config.TelemetryConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		otel.SetMeterProvider(mp)
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}
	return nil
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// EstimatorMetrics holds the estimation and HTTP instruments
type EstimatorMetrics struct {
	RunsTotal             metric.Int64Counter
	RunErrors             metric.Int64Counter
	RunDuration           metric.Float64Histogram
	CholeskyFallbacks     metric.Int64Counter
	SkippedRegimes        metric.Int64Counter
	PermutationsEvaluated metric.Int64Histogram
	SignificantPairs      metric.Int64Histogram
	CascadeSimulations    metric.Int64Counter

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// CreateEstimatorMetrics creates the application instruments on meter
func CreateEstimatorMetrics(meter metric.Meter) (*EstimatorMetrics, error) {
	var (
		m   EstimatorMetrics
		err error
	)

	if m.RunsTotal, err = meter.Int64Counter("transmission_runs_total",
		metric.WithDescription("Total number of transmission estimation runs")); err != nil {
		return nil, err
	}
	if m.RunErrors, err = meter.Int64Counter("transmission_run_errors_total",
		metric.WithDescription("Total number of failed estimation runs")); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram("transmission_run_duration_seconds",
		metric.WithDescription("Estimation run duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.CholeskyFallbacks, err = meter.Int64Counter("transmission_cholesky_fallbacks_total",
		metric.WithDescription("Runs whose primary identification fell back to the reduced form")); err != nil {
		return nil, err
	}
	if m.SkippedRegimes, err = meter.Int64Counter("transmission_skipped_regimes_total",
		metric.WithDescription("Regimes below the minimum observation count")); err != nil {
		return nil, err
	}
	if m.PermutationsEvaluated, err = meter.Int64Histogram("transmission_permutations_evaluated",
		metric.WithDescription("Identification orderings evaluated per run")); err != nil {
		return nil, err
	}
	if m.SignificantPairs, err = meter.Int64Histogram("transmission_significant_pairs",
		metric.WithDescription("Significant Granger pairs per run")); err != nil {
		return nil, err
	}
	if m.CascadeSimulations, err = meter.Int64Counter("cascade_simulations_total",
		metric.WithDescription("Total number of cascade simulations")); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordEstimationRun records the outcome of one estimation run
func RecordEstimationRun(ctx context.Context, m *EstimatorMetrics, report *transmission.Report, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
		m.RunErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error.type", fmt.Sprintf("%T", err))))
	}
	statusAttr := metric.WithAttributes(attribute.String("status", status))
	m.RunsTotal.Add(ctx, 1, statusAttr)
	m.RunDuration.Record(ctx, duration.Seconds(), statusAttr)

	if report == nil {
		return
	}
	if report.Estimate != nil && !report.Estimate.Identified {
		m.CholeskyFallbacks.Add(ctx, 1)
	}
	if report.Robustness != nil {
		m.PermutationsEvaluated.Record(ctx, int64(report.Robustness.Orderings))
	}
	if acc := report.Acceleration; acc != nil {
		min := report.Params.MinRegimeObs
		if acc.NormalObs < min {
			m.SkippedRegimes.Add(ctx, 1, metric.WithAttributes(attribute.String("regime", "normal")))
		}
		if acc.StressObs < min {
			m.SkippedRegimes.Add(ctx, 1, metric.WithAttributes(attribute.String("regime", "stress")))
		}
	}
	m.SignificantPairs.Record(ctx, int64(len(report.SignificantPairs())))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
