package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macpulse/internal/config"
	apierrors "macpulse/internal/errors"
	"macpulse/internal/transmission"
	api "macpulse/pkg/contracts/api/v1"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Security.RateLimit.Enabled = false
	cfg.Estimator.MaxPermutations = 6
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "prometheus"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	app, err := NewApplication(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.OTelProviders.Shutdown(context.Background())
	})
	return app
}

func serve(app *Application, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplication(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.Transmission)
	assert.NotNil(t, app.HealthService)
	assert.DirExists(t, app.Paths.ReportsDir)
	assert.Equal(t, ":0", app.Server.Addr)
}

func TestNewApplicationRequiresConfig(t *testing.T) {
	_, err := NewApplication(nil, nil)
	assert.Error(t, err)
}

func TestNewApplicationInvalidEstimator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Estimator.Ordering = []string{"policy", "credit"}

	_, err := NewApplication(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK},
		{"ready", http.MethodGet, "/api/health/ready", http.StatusOK},
		{"live", http.MethodGet, "/api/health/live", http.StatusOK},
		{"version", http.MethodGet, "/api/version", http.StatusOK},
		{"trailing slash", http.MethodGet, "/api/health/", http.StatusOK},
		{"no report yet", http.MethodGet, "/api/v1/transmission/latest", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/health", http.StatusMethodNotAllowed},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.method, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMiddlewareChain(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rec := serve(app, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serve(app, http.MethodGet, "/api/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeNotFound, problem["type"])

	scrape := serve(app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), "http_requests_total")
}

func TestRateLimitedAPI(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RPS = 0.1
	cfg.Security.RateLimit.Burst = 1
	app := newTestApp(t, cfg)

	assert.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(app, http.MethodGet, "/api/health", nil).Code)

	// scrape endpoint is not limited
	assert.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/metrics", nil).Code)
}

func TestEstimateThroughRouter(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rng := rand.New(rand.NewSource(7))
	series := make(map[transmission.Pillar][]float64, 6)
	for _, p := range transmission.Pillars() {
		values := make([]float64, 90)
		values[0] = 0.5
		for i := 1; i < len(values); i++ {
			values[i] = values[i-1] + rng.NormFloat64()*0.02
		}
		series[p] = values
	}
	body, err := json.Marshal(api.EstimateRequest{Series: series})
	require.NoError(t, err)

	rec := serve(app, http.MethodPost, "/api/v1/transmission/estimate", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(app, http.MethodGet, "/api/v1/transmission/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.FileExists(t, app.Paths.GetReportPath(config.LatestReportJSON))

	rec = serve(app, http.MethodGet, "/api/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":true`)
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxBodyBytes = 64
	app := newTestApp(t, cfg)

	body := bytes.Repeat([]byte(" "), 128)
	rec := serve(app, http.MethodPost, "/api/v1/transmission/estimate", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestStartStop(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))

	addr := app.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(context.Background()))
}
