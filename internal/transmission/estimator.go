package transmission

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Input is everything one estimation run consumes
type Input struct {
	Series PillarSeries `json:"series"`
	// Composite is the optional MAC score series used by the regime splitter
	Composite []float64 `json:"composite,omitempty"`
	// Validation carries out-of-sample records supplied by the replay harness
	Validation []ValidationRecord `json:"validation,omitempty"`
}

// Estimator orchestrates VAR estimation, identification and diagnostics
type Estimator struct {
	params Params
	perm   []int
	logger *slog.Logger
	now    func() time.Time
}

// NewEstimator creates an estimator with validated parameters
func NewEstimator(params Params, logger *slog.Logger) (*Estimator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid estimator parameters: %w", err)
	}
	perm, err := orderingIndex(params.Ordering)
	if err != nil {
		return nil, err
	}

	params.Ordering = append([]Pillar(nil), params.Ordering...)
	params.CandidateLags = append([]int(nil), params.CandidateLags...)

	return &Estimator{
		params: params,
		perm:   perm,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Params returns a copy of the estimator parameters
func (e *Estimator) Params() Params {
	p := e.params
	p.Ordering = append([]Pillar(nil), e.params.Ordering...)
	p.CandidateLags = append([]int(nil), e.params.CandidateLags...)
	return p
}

// Estimate fits the primary VAR on differenced series and derives the
// Cholesky-identified transmission matrix under the configured ordering.
func (e *Estimator) Estimate(ctx context.Context, series PillarSeries) (*VAREstimate, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	diffed := difference(seriesMatrix(series))
	fit := selectLag(diffed, e.params.CandidateLags)
	return e.estimateFromFit(ctx, fit), nil
}

func (e *Estimator) estimateFromFit(ctx context.Context, fit *varFit) *VAREstimate {
	identified := true
	resp, ok := choleskyResponse(fit, e.perm, e.params.Horizon)
	if !ok {
		identified = false
		resp = reducedFormResponse(fit, e.params.Horizon)
		e.logger.WarnContext(ctx, "cholesky identification failed, using reduced-form response",
			"lag", fit.lag,
		)
	}

	coefs := make([]Matrix, len(fit.coefs))
	for j, a := range fit.coefs {
		coefs[j] = toMatrix(a)
	}
	cum := toMatrix(resp)

	e.logger.DebugContext(ctx, "primary estimate complete",
		"lag", fit.lag,
		"bic", fit.bic,
		"observations", fit.n,
		"identified", identified,
	)

	return &VAREstimate{
		Pillars:            Pillars(),
		Ordering:           append([]Pillar(nil), e.params.Ordering...),
		LagOrder:           fit.lag,
		BIC:                fit.bic,
		Observations:       fit.n,
		Coefficients:       coefs,
		Intercept:          append([]float64(nil), fit.intercept...),
		Sigma:              toMatrix(fit.sigma),
		Horizon:            e.params.Horizon,
		CumulativeResponse: cum,
		Transmission:       Normalize(cum),
		Identified:         identified,
	}
}

// Robustness repeats the Cholesky identification over permutations of the
// ordering using the fit carried by est.
func (e *Estimator) Robustness(ctx context.Context, est *VAREstimate) (*RobustnessResult, error) {
	if est == nil {
		return nil, &ValidationError{Field: "estimate", Message: "estimate is required"}
	}
	return robustness(ctx, fitFromEstimate(est), e.perm, e.params.Horizon, e.params.MaxPermutations, e.params.MaxWorkers)
}

// Acceleration estimates normal and stress regime transmission split by the
// composite score.
func (e *Estimator) Acceleration(ctx context.Context, series PillarSeries, composite []float64) (*AccelerationFactors, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFinite("composite", composite); err != nil {
		return nil, err
	}

	acc, err := acceleration(difference(seriesMatrix(series)), composite, e.perm, e.params)
	if err != nil {
		return nil, err
	}
	if acc.NormalObs < e.params.MinRegimeObs || acc.StressObs < e.params.MinRegimeObs {
		e.logger.WarnContext(ctx, "regime below minimum observations, using zero matrix",
			"normal_obs", acc.NormalObs,
			"stress_obs", acc.StressObs,
			"min_obs", e.params.MinRegimeObs,
		)
	}
	return acc, nil
}

// Causality runs pairwise Granger tests on the differenced series
func (e *Estimator) Causality(ctx context.Context, series PillarSeries) ([]CausalityResult, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return causality(difference(seriesMatrix(series)), e.params), nil
}

// Run executes the full pipeline and assembles a report
func (e *Estimator) Run(ctx context.Context, in Input) (*Report, error) {
	start := e.now()

	if err := ValidateSeries(in.Series); err != nil {
		e.logger.ErrorContext(ctx, "input validation failed", "error", err)
		return nil, fmt.Errorf("validate series: %w", err)
	}
	if in.Composite != nil {
		if err := validateFinite("composite", in.Composite); err != nil {
			return nil, fmt.Errorf("validate composite: %w", err)
		}
	}

	e.logger.InfoContext(ctx, "starting transmission estimation",
		"observations", in.Series.Len(),
		"horizon", e.params.Horizon,
		"robustness", e.params.RunRobustness,
		"causality", e.params.RunCausality,
		"regimes", in.Composite != nil,
	)

	diffed := difference(seriesMatrix(in.Series))
	fit := selectLag(diffed, e.params.CandidateLags)
	est := e.estimateFromFit(ctx, fit)

	report := &Report{
		RunID:        uuid.New().String(),
		GeneratedAt:  start.UTC(),
		Params:       e.Params(),
		Inputs:       summarize(in.Series),
		Estimate:     est,
		Causality:    []CausalityResult{},
		Transmission: MatrixToDict(est.Transmission, est.Pillars),
		Validation:   withAbsErrors(nil, in.Validation),
	}

	if e.params.RunRobustness {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("robustness: %w", err)
		}
		rob, err := robustness(ctx, fit, e.perm, e.params.Horizon, e.params.MaxPermutations, e.params.MaxWorkers)
		if err != nil {
			return nil, fmt.Errorf("robustness: %w", err)
		}
		if rob.Succeeded < rob.Orderings {
			e.logger.WarnContext(ctx, "some orderings failed cholesky identification",
				"orderings", rob.Orderings,
				"succeeded", rob.Succeeded,
			)
		}
		report.Robustness = rob
	}

	if in.Composite != nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("acceleration: %w", err)
		}
		acc, err := acceleration(diffed, in.Composite, e.perm, e.params)
		if err != nil {
			return nil, fmt.Errorf("acceleration: %w", err)
		}
		report.Acceleration = acc
	}

	if e.params.RunCausality {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("causality: %w", err)
		}
		report.Causality = causality(diffed, e.params)
	}

	e.logger.InfoContext(ctx, "transmission estimation complete",
		"run_id", report.RunID,
		"lag", est.LagOrder,
		"identified", est.Identified,
		"significant_pairs", countSignificant(report.Causality),
		"duration", time.Since(start),
	)
	return report, nil
}

// AppendValidation returns a copy of the report with extra out-of-sample
// records. Missing absolute errors are derived from predicted and realized.
func AppendValidation(r *Report, records ...ValidationRecord) *Report {
	out := *r
	out.Validation = withAbsErrors(r.Validation, records)
	return &out
}

// withAbsErrors copies base and records into a new slice, filling in the
// absolute error of records that lack one
func withAbsErrors(base, records []ValidationRecord) []ValidationRecord {
	out := make([]ValidationRecord, 0, len(base)+len(records))
	out = append(out, base...)
	for _, rec := range records {
		if rec.AbsError == 0 {
			rec.AbsError = math.Abs(rec.Predicted - rec.Realized)
		}
		out = append(out, rec)
	}
	return out
}

// MeanAbsError is the mean absolute out-of-sample error, NaN when the report
// carries no validation records.
func (r *Report) MeanAbsError() float64 {
	if len(r.Validation) == 0 {
		return math.NaN()
	}
	errs := make([]float64, len(r.Validation))
	for i, v := range r.Validation {
		errs[i] = v.AbsError
	}
	return stat.Mean(errs, nil)
}

// SignificantPairs returns the causality results flagged significant
func (r *Report) SignificantPairs() []CausalityResult {
	var out []CausalityResult
	for _, c := range r.Causality {
		if c.Significant {
			out = append(out, c)
		}
	}
	return out
}

func countSignificant(results []CausalityResult) int {
	n := 0
	for _, c := range results {
		if c.Significant {
			n++
		}
	}
	return n
}

func summarize(series PillarSeries) []SeriesSummary {
	out := make([]SeriesSummary, 0, len(series))
	for _, p := range Pillars() {
		values := series[p]
		mean, std := stat.MeanStdDev(values, nil)
		if math.IsNaN(std) {
			std = 0
		}
		out = append(out, SeriesSummary{
			Pillar: p,
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(values),
			Max:    floats.Max(values),
		})
	}
	return out
}

func validateFinite(field string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s has a non-finite value at index %d", field, i),
				Value:   i,
			}
		}
	}
	return nil
}
