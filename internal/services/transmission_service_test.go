package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macpulse/internal/cascade"
	"macpulse/internal/config"
	"macpulse/internal/dataprocessing"
	apierrors "macpulse/internal/errors"
	"macpulse/internal/exporter"
	"macpulse/internal/shared/testutil"
	"macpulse/internal/transmission"
)

func newTestService(t *testing.T, paths *config.Paths) *TransmissionService {
	t.Helper()
	params := transmission.DefaultParams()
	params.MaxPermutations = 12

	est, err := transmission.NewEstimator(params, testutil.QuietLogger())
	require.NoError(t, err)

	svc, err := NewTransmissionService(TransmissionDeps{
		Estimator: est,
		Paths:     paths,
		Logger:    testutil.QuietLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestEstimateLogsPersistence(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	params := transmission.DefaultParams()
	params.RunRobustness = false

	est, err := transmission.NewEstimator(params, logger)
	require.NoError(t, err)
	svc, err := NewTransmissionService(TransmissionDeps{
		Estimator: est,
		Paths:     testutil.TempPaths(t),
		Logger:    logger,
	})
	require.NoError(t, err)

	report, err := svc.Estimate(context.Background(), transmission.Input{Series: testutil.RandomWalks(10, 60)})
	require.NoError(t, err)

	testutil.AssertLogContains(t, logs, slog.LevelInfo, "Persisted transmission report")
	assert.True(t, logs.ContainsAttr("run_id", report.RunID))
	assert.True(t, logs.ContainsAttr("service", "transmission"))
}

func TestNewTransmissionServiceRequiresEstimator(t *testing.T) {
	_, err := NewTransmissionService(TransmissionDeps{})
	assert.Error(t, err)
}

func TestEstimatePersistsOutputs(t *testing.T) {
	paths := testutil.TempPaths(t)
	svc := newTestService(t, paths)
	ctx := context.Background()

	_, err := svc.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoReport)
	assert.False(t, svc.Status().Available)

	report, err := svc.Estimate(ctx, transmission.Input{Series: testutil.RandomWalks(1, 120)})
	require.NoError(t, err)
	require.NotNil(t, report.Estimate)
	assert.NotEmpty(t, report.RunID)
	require.NotNil(t, report.Robustness)
	assert.Equal(t, 12, report.Robustness.Orderings)

	for _, name := range []string{
		config.LatestReportJSON,
		config.LatestReportText,
		config.LatestMatrixCSV,
		config.LatestCausalityCSV,
		config.LatestWorkbook,
	} {
		assert.FileExists(t, paths.GetReportPath(name))
	}
	assert.FileExists(t, paths.GetRunReportPath(report.RunID, report.GeneratedAt))

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Same(t, report, latest)

	status := svc.Status()
	assert.True(t, status.Available)
	assert.Equal(t, report.RunID, status.RunID)
	assert.False(t, status.Running)

	text, err := svc.LatestText(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, report.RunID)

	dict, err := svc.TransmissionDict(ctx)
	require.NoError(t, err)
	assert.Len(t, dict, 6)
}

func TestLatestLoadsPersistedReport(t *testing.T) {
	paths := testutil.TempPaths(t)
	first := newTestService(t, paths)

	report, err := first.Estimate(context.Background(), transmission.Input{Series: testutil.RandomWalks(2, 80)})
	require.NoError(t, err)

	second := newTestService(t, paths)
	loaded, err := second.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, loaded.RunID)
	assert.Equal(t, report.Estimate.LagOrder, loaded.Estimate.LagOrder)
	assert.True(t, second.Status().Available)
}

func TestLatestCorruptReport(t *testing.T) {
	paths := testutil.TempPaths(t)
	require.NoError(t, os.WriteFile(paths.GetReportPath(config.LatestReportJSON), []byte("{not json"), 0644))

	svc := newTestService(t, paths)
	_, err := svc.Latest(context.Background())
	require.Error(t, err)

	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierrors.ErrTypeStorage, appErr.Type)
}

func TestEstimateValidationErrorPassesThrough(t *testing.T) {
	svc := newTestService(t, nil)
	series := testutil.RandomWalks(3, 40)
	delete(series, transmission.Volatility)

	_, err := svc.Estimate(context.Background(), transmission.Input{Series: series})
	require.Error(t, err)

	var seriesErr *transmission.ValidationError
	require.ErrorAs(t, err, &seriesErr)
	assert.Equal(t, "volatility", seriesErr.Field)

	var appErr *apierrors.AppError
	assert.False(t, errors.As(err, &appErr))
	assert.False(t, svc.Status().Available)
}

func TestEstimateCanceledContext(t *testing.T) {
	svc := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Estimate(ctx, transmission.Input{Series: testutil.RandomWalks(4, 60)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimateRejectsConcurrentRun(t *testing.T) {
	svc := newTestService(t, nil)
	svc.running.Store(true)
	defer svc.running.Store(false)

	_, err := svc.Estimate(context.Background(), transmission.Input{Series: testutil.RandomWalks(5, 60)})
	assert.ErrorIs(t, err, ErrEstimateRunning)
	assert.True(t, svc.Status().Running)
}

func TestEstimateWithoutPersistence(t *testing.T) {
	svc := newTestService(t, nil)

	report, err := svc.Estimate(context.Background(), transmission.Input{Series: testutil.RandomWalks(6, 60)})
	require.NoError(t, err)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, latest.RunID)
}

func TestEstimateFromFile(t *testing.T) {
	paths := testutil.TempPaths(t)
	svc := newTestService(t, paths)

	series := testutil.RandomWalks(7, 60)
	composite := make([]float64, 60)
	for i := range composite {
		composite[i] = 0.6
	}
	path := testutil.WritePillarCSV(t, t.TempDir(), "pillars.csv", series, composite)

	report, err := svc.EstimateFromFile(context.Background(), path, dataprocessing.ParseOptions{}, nil)
	require.NoError(t, err)
	require.NotNil(t, report.Acceleration)
	// every row is normal, so the stress regime is too short
	assert.Equal(t, 0, report.Acceleration.StressObs)
	assert.True(t, report.Acceleration.Stress.IsZero())

	_, err = svc.EstimateFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), dataprocessing.ParseOptions{}, nil)
	assert.Error(t, err)
}

func TestAddValidation(t *testing.T) {
	paths := testutil.TempPaths(t)
	svc := newTestService(t, paths)
	ctx := context.Background()

	_, err := svc.AddValidation(ctx, transmission.ValidationRecord{Scenario: "covid"})
	assert.ErrorIs(t, err, ErrNoReport)

	original, err := svc.Estimate(ctx, transmission.Input{Series: testutil.RandomWalks(8, 80)})
	require.NoError(t, err)

	_, err = svc.AddValidation(ctx)
	assert.ErrorIs(t, err, ErrInvalidInput)

	rec := transmission.ValidationRecord{
		Scenario:  "covid",
		AsOf:      time.Date(2020, 3, 16, 0, 0, 0, 0, time.UTC),
		Predicted: 0.2,
		Realized:  0.5,
	}
	updated, err := svc.AddValidation(ctx, rec)
	require.NoError(t, err)
	require.Len(t, updated.Validation, 1)
	assert.InDelta(t, 0.3, updated.Validation[0].AbsError, 1e-12)
	assert.Empty(t, original.Validation)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Len(t, latest.Validation, 1)

	history := paths.GetReportPath(exporter.ValidationHistoryCSV)
	data, err := os.ReadFile(history)
	require.NoError(t, err)
	assert.Contains(t, string(data), original.RunID)
	assert.Contains(t, string(data), "covid")

	persisted, err := transmission.LoadReportJSON(paths.GetReportPath(config.LatestReportJSON))
	require.NoError(t, err)
	assert.Len(t, persisted.Validation, 1)
}

func TestAddValidationConcurrent(t *testing.T) {
	for _, tc := range []struct {
		name    string
		paths   *config.Paths
		writers int
	}{
		{"in memory", nil, 500},
		{"persisted", testutil.TempPaths(t), 40},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, tc.paths)
			ctx := context.Background()

			report, err := svc.Estimate(ctx, transmission.Input{Series: testutil.RandomWalks(9, 60)})
			require.NoError(t, err)

			var wg sync.WaitGroup
			errs := make([]error, tc.writers)
			for i := 0; i < tc.writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.AddValidation(ctx, transmission.ValidationRecord{
						Scenario:  "replay",
						AsOf:      time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*i),
						Predicted: 0.1,
						Realized:  0.2,
					})
				}(i)
			}
			wg.Wait()
			for _, err := range errs {
				require.NoError(t, err)
			}

			latest, err := svc.Latest(ctx)
			require.NoError(t, err)
			assert.Equal(t, report.RunID, latest.RunID)
			assert.Len(t, latest.Validation, tc.writers)

			if tc.paths != nil {
				persisted, err := transmission.LoadReportJSON(tc.paths.GetReportPath(config.LatestReportJSON))
				require.NoError(t, err)
				assert.Len(t, persisted.Validation, tc.writers)
			}
		})
	}
}

func TestAddValidationDuringEstimate(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.Estimate(ctx, transmission.Input{Series: testutil.RandomWalks(3, 60)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var second *transmission.Report
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		second, err = svc.Estimate(ctx, transmission.Input{Series: testutil.RandomWalks(4, 60)})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := svc.AddValidation(ctx, transmission.ValidationRecord{Scenario: "replay", Predicted: 0.3, Realized: 0.1})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	require.NotNil(t, second)
	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest.RunID)
	assert.NotEqual(t, first.RunID, latest.RunID)
}

func TestReplaceLatestRejectsStaleRun(t *testing.T) {
	svc := newTestService(t, nil)
	current := &transmission.Report{RunID: "current"}
	svc.setLatest(current)

	assert.False(t, svc.replaceLatest("older", &transmission.Report{RunID: "older"}))
	assert.Same(t, current, svc.latest)

	updated := &transmission.Report{RunID: "current"}
	assert.True(t, svc.replaceLatest("current", updated))
	assert.Same(t, updated, svc.latest)
}

func TestSimulateCascade(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	initial := cascade.State{}
	for _, p := range transmission.Pillars() {
		initial[p] = 0.1
	}
	initial = cascade.Shock(initial, transmission.Liquidity, 0.5)

	_, err := svc.SimulateCascade(ctx, initial, cascade.DefaultOptions())
	assert.ErrorIs(t, err, ErrNoReport)

	_, err = svc.Estimate(ctx, transmission.Input{Series: testutil.RandomWalks(9, 80)})
	require.NoError(t, err)

	path, err := svc.SimulateCascade(ctx, initial, cascade.DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, path.Steps, cascade.DefaultOptions().Periods+1)

	_, err = svc.SimulateCascade(ctx, initial, cascade.Options{Periods: 0, Damping: 0.5})
	require.Error(t, err)
	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierrors.ErrTypeValidation, appErr.Type)
}
