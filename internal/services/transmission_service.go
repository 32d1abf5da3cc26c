package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"macpulse/internal/cascade"
	"macpulse/internal/config"
	"macpulse/internal/dataprocessing"
	apierrors "macpulse/internal/errors"
	"macpulse/internal/exporter"
	"macpulse/internal/infrastructure"
	"macpulse/internal/transmission"
)

// TransmissionDeps are the collaborators of a TransmissionService. Paths nil
// disables persistence; Tracer and Metrics nil disable instrumentation.
type TransmissionDeps struct {
	Estimator *transmission.Estimator
	Paths     *config.Paths
	Exporter  *exporter.TransmissionExporter
	Tracer    trace.Tracer
	Metrics   *infrastructure.EstimatorMetrics
	// Timeout bounds a single estimation run; zero means no limit
	Timeout time.Duration
	Logger  *slog.Logger
}

// RunStatus summarizes the cached report for health checks
type RunStatus struct {
	Available   bool      `json:"available"`
	RunID       string    `json:"run_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
	Running     bool      `json:"running"`
}

// TransmissionService runs estimations, caches the latest report and
// persists outputs
type TransmissionService struct {
	estimator *transmission.Estimator
	paths     *config.Paths
	exporter  *exporter.TransmissionExporter
	tracer    trace.Tracer
	metrics   *infrastructure.EstimatorMetrics
	timeout   time.Duration
	logger    *slog.Logger

	mu     sync.RWMutex
	latest *transmission.Report

	// updateMu serializes installing a report and writing it to disk
	updateMu sync.Mutex

	// running rejects a second estimation while one is in flight
	running atomic.Bool
}

// NewTransmissionService creates a new transmission service
func NewTransmissionService(deps TransmissionDeps) (*TransmissionService, error) {
	if deps.Estimator == nil {
		return nil, fmt.Errorf("transmission service requires an estimator")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName)
	}
	exp := deps.Exporter
	if exp == nil && deps.Paths != nil {
		exp = exporter.NewTransmissionExporter(deps.Paths, logger)
	}

	return &TransmissionService{
		estimator: deps.Estimator,
		paths:     deps.Paths,
		exporter:  exp,
		tracer:    tracer,
		metrics:   deps.Metrics,
		timeout:   deps.Timeout,
		logger:    logger.With(slog.String("service", "transmission")),
	}, nil
}

// Params returns the estimator parameters
func (s *TransmissionService) Params() transmission.Params {
	return s.estimator.Params()
}

// Estimate runs the full pipeline, caches the report and persists it. When
// persistence fails the report is still cached and returned together with a
// storage error.
func (s *TransmissionService) Estimate(ctx context.Context, in transmission.Input) (*transmission.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrEstimateRunning
	}
	defer s.running.Store(false)

	ctx, span := s.tracer.Start(ctx, "transmission.estimate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("transmission.observations", in.Series.Len()),
			attribute.Bool("transmission.regimes", in.Composite != nil),
		),
	)
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	report, err := s.estimator.Run(ctx, in)
	infrastructure.RecordEstimationRun(ctx, s.metrics, report, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, s.classify(err)
	}

	span.SetAttributes(
		attribute.String("transmission.run_id", report.RunID),
		attribute.Int("transmission.lag_order", report.Estimate.LagOrder),
		attribute.Bool("transmission.identified", report.Estimate.Identified),
	)

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.setLatest(report)

	if err := s.persist(ctx, report); err != nil {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "failed to persist report",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()))
		return report, apierrors.NewStorageError("failed to persist report", err).
			WithContext("run_id", report.RunID)
	}
	return report, nil
}

// EstimateFromFile parses a pillar table and estimates it
func (s *TransmissionService) EstimateFromFile(ctx context.Context, path string, opts dataprocessing.ParseOptions, validation []transmission.ValidationRecord) (*transmission.Report, error) {
	table, err := dataprocessing.ParseFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	first, last := table.Span()
	s.logger.InfoContext(ctx, "Loaded pillar table",
		slog.String("path", path),
		slog.Int("rows", table.Len()),
		slog.Int("filled_cells", table.Filled),
		slog.Bool("composite", table.Composite != nil),
		slog.String("from", first.Format("2006-01-02")),
		slog.String("to", last.Format("2006-01-02")))

	return s.Estimate(ctx, table.Input(validation))
}

// classify maps estimator errors onto application error types
func (s *TransmissionService) classify(err error) error {
	var seriesErr *transmission.ValidationError
	switch {
	case errors.As(err, &seriesErr):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		return apierrors.NewEstimationError("estimation failed", err)
	}
}

// Latest returns the cached report, falling back to the persisted one
func (s *TransmissionService) Latest(ctx context.Context) (*transmission.Report, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}

	if s.paths == nil {
		return nil, ErrNoReport
	}
	path := s.paths.GetReportPath(config.LatestReportJSON)
	if !config.FileExists(path) {
		return nil, ErrNoReport
	}

	report, err := transmission.LoadReportJSON(path)
	if err != nil {
		return nil, apierrors.NewStorageError("failed to load persisted report", err).
			WithContext("path", path)
	}
	s.logger.InfoContext(ctx, "Loaded persisted report",
		slog.String("run_id", report.RunID),
		slog.String("path", path))

	s.mu.Lock()
	if s.latest == nil {
		s.latest = report
	}
	latest = s.latest
	s.mu.Unlock()
	return latest, nil
}

// LatestText renders the latest report as text
func (s *TransmissionService) LatestText(ctx context.Context) (string, error) {
	report, err := s.Latest(ctx)
	if err != nil {
		return "", err
	}
	return transmission.FormatReport(report), nil
}

// TransmissionDict returns the dict of the latest report
func (s *TransmissionService) TransmissionDict(ctx context.Context) (transmission.TransmissionDict, error) {
	report, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return report.Transmission, nil
}

// AddValidation appends out-of-sample records to the latest report. The
// cached report is replaced by the extended copy. Updates are serialized
// with each other and with installing a new run.
func (s *TransmissionService) AddValidation(ctx context.Context, records ...transmission.ValidationRecord) (*transmission.Report, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no validation records", ErrInvalidInput)
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	report, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}

	updated := transmission.AppendValidation(report, records...)
	if !s.replaceLatest(report.RunID, updated) {
		return nil, ErrReportSuperseded
	}

	if s.paths != nil {
		if err := transmission.SaveReportJSON(updated, s.paths.GetReportPath(config.LatestReportJSON)); err != nil {
			return updated, apierrors.NewStorageError("failed to save report", err)
		}
	}
	if s.exporter != nil {
		// records already carry the derived absolute error
		added := updated.Validation[len(updated.Validation)-len(records):]
		if err := s.exporter.AppendValidationHistory(updated.RunID, added); err != nil {
			return updated, apierrors.NewStorageError("failed to append validation history", err)
		}
	}

	s.logger.InfoContext(ctx, "Recorded validation",
		slog.String("run_id", updated.RunID),
		slog.Int("records", len(records)),
		slog.Float64("mean_abs_error", updated.MeanAbsError()))
	return updated, nil
}

// SimulateCascade propagates an initial stress state through the latest dict
func (s *TransmissionService) SimulateCascade(ctx context.Context, initial cascade.State, opts cascade.Options) (*cascade.Path, error) {
	dict, err := s.TransmissionDict(ctx)
	if err != nil {
		return nil, err
	}

	_, span := s.tracer.Start(ctx, "transmission.cascade",
		trace.WithAttributes(
			attribute.Int("cascade.periods", opts.Periods),
			attribute.Float64("cascade.damping", opts.Damping),
		),
	)
	defer span.End()

	path, err := cascade.Simulate(dict, initial, opts)
	if err != nil {
		span.RecordError(err)
		return nil, apierrors.NewAppValidationError("invalid cascade request", err)
	}
	if s.metrics != nil {
		s.metrics.CascadeSimulations.Add(ctx, 1,
			metric.WithAttributes(attribute.String("peak", string(path.Peak))))
	}
	return path, nil
}

// Status reports what the service has cached
func (s *TransmissionService) Status() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := RunStatus{Running: s.running.Load()}
	if s.latest != nil {
		status.Available = true
		status.RunID = s.latest.RunID
		status.GeneratedAt = s.latest.GeneratedAt
	}
	return status
}

func (s *TransmissionService) setLatest(r *transmission.Report) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()
}

// replaceLatest installs r only while the cached report is still runID
func (s *TransmissionService) replaceLatest(runID string, r *transmission.Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil && s.latest.RunID != runID {
		return false
	}
	s.latest = r
	return true
}

// persist writes the JSON, text and spreadsheet outputs of a run
func (s *TransmissionService) persist(ctx context.Context, r *transmission.Report) error {
	if s.paths == nil {
		return nil
	}

	latestJSON := s.paths.GetReportPath(config.LatestReportJSON)
	if err := transmission.SaveReportJSON(r, latestJSON); err != nil {
		return err
	}
	if err := transmission.SaveReportJSON(r, s.paths.GetRunReportPath(r.RunID, r.GeneratedAt)); err != nil {
		return err
	}
	if err := transmission.SaveTextReport(r, s.paths.GetReportPath(config.LatestReportText)); err != nil {
		return err
	}

	if s.exporter != nil {
		if _, err := s.exporter.ExportAll(r); err != nil {
			return err
		}
		if err := s.exporter.AppendValidationHistory(r.RunID, r.Validation); err != nil {
			return err
		}
	}

	if info, err := os.Stat(latestJSON); err == nil {
		s.logger.InfoContext(ctx, "Persisted transmission report",
			slog.String("run_id", r.RunID),
			slog.String("path", latestJSON),
			slog.Int64("bytes", info.Size()))
	}
	return nil
}
