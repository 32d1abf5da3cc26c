package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macpulse/internal/config"
	"macpulse/internal/transmission"
)

func testTelemetry() config.TelemetryConfig {
	cfg := config.Default().Telemetry
	cfg.Environment = "test"
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(testTelemetry(), quietLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)
	// trace exporter "none" leaves tracing on the no-op provider
	assert.Nil(t, providers.TracerProvider)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelDisabled(t *testing.T) {
	cfg := testTelemetry()
	cfg.Enabled = false

	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NoError(t, providers.Shutdown(context.Background()))

	// no-op meters still hand out usable instruments
	metrics, err := CreateEstimatorMetrics(providers.Meter)
	require.NoError(t, err)
	RecordEstimationRun(context.Background(), metrics, nil, time.Second, nil)
}

func TestOTelUnsupportedExporters(t *testing.T) {
	cfg := testTelemetry()
	cfg.TraceExporter = "jaeger"
	_, err := InitializeOTel(cfg, quietLogger())
	assert.Error(t, err)

	cfg = testTelemetry()
	cfg.MetricExporter = "statsd"
	_, err = InitializeOTel(cfg, quietLogger())
	assert.Error(t, err)
}

func TestRecordEstimationRunExportsMetrics(t *testing.T) {
	providers, err := InitializeOTel(testTelemetry(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateEstimatorMetrics(providers.Meter)
	require.NoError(t, err)

	params := transmission.DefaultParams()
	report := &transmission.Report{
		Params:     params,
		Estimate:   &transmission.VAREstimate{Identified: false},
		Robustness: &transmission.RobustnessResult{Orderings: 720, Succeeded: 720},
		Acceleration: &transmission.AccelerationFactors{
			NormalObs: 80,
			StressObs: 5,
		},
		Causality: []transmission.CausalityResult{
			{Cause: transmission.Policy, Effect: transmission.Liquidity, Significant: true},
		},
	}

	ctx := context.Background()
	RecordEstimationRun(ctx, metrics, report, 250*time.Millisecond, nil)
	RecordEstimationRun(ctx, metrics, nil, time.Millisecond, errors.New("boom"))
	RecordEstimationRun(ctx, nil, report, time.Millisecond, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"transmission_runs_total",
		"transmission_run_errors_total",
		"transmission_run_duration_seconds",
		"transmission_cholesky_fallbacks_total",
		"transmission_skipped_regimes_total",
		"transmission_permutations_evaluated",
		"transmission_significant_pairs",
	} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, `regime="stress"`)
	assert.NotContains(t, body, `regime="normal"`)
}

func TestRecordErrorWithoutSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(context.Background(), errors.New("no span"))
	})
}
