package transmission

import (
	"fmt"
	"math"
	"time"
)

// Pillar identifies one of the six monitored stress dimensions
type Pillar string

const (
	Policy      Pillar = "policy"
	Valuation   Pillar = "valuation"
	Contagion   Pillar = "contagion"
	Liquidity   Pillar = "liquidity"
	Volatility  Pillar = "volatility"
	Positioning Pillar = "positioning"
)

// Pillars returns the canonical pillar order (slow to fast moving).
// All result matrices are indexed in this order.
func Pillars() []Pillar {
	return []Pillar{Policy, Valuation, Contagion, Liquidity, Volatility, Positioning}
}

// DefaultOrdering returns the theory-based Cholesky identification ordering
func DefaultOrdering() []Pillar {
	return Pillars()
}

// ParsePillar converts a case-sensitive name into a Pillar
func ParsePillar(name string) (Pillar, error) {
	for _, p := range Pillars() {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pillar %q", name)
}

// PillarSeries maps every pillar to its score history. All series share
// length and alignment.
type PillarSeries map[Pillar][]float64

// Len returns the common series length, or 0 when empty
func (s PillarSeries) Len() int {
	for _, v := range s {
		return len(v)
	}
	return 0
}

// PValueMethod selects how causality p-values are computed
type PValueMethod string

const (
	// PValueWilsonHilferty uses the cube-root normal approximation of the F tail
	PValueWilsonHilferty PValueMethod = "wilson-hilferty"
	// PValueExact uses the F distribution survival function
	PValueExact PValueMethod = "exact"
)

// Numerical constants of the estimator
const (
	// RidgeLambda is added to the X'X diagonal before solving
	RidgeLambda = 1e-8
	// CholeskyJitter is added to the covariance diagonal on the retry
	CholeskyJitter = 1e-8
	// DegenerateLogDet replaces ln|Σ| when the determinant is not positive
	DegenerateLogDet = 1e10
	// LagHeadroom is the number of observations a candidate lag must leave free
	LagHeadroom = 10
	// NumericalZero is the magnitude below which a matrix entry counts as zero
	NumericalZero = 1e-10
	// MaxAcceleration caps the stress/normal ratio
	MaxAcceleration = 5.0
	// maxFStatistic stands in for an unbounded F when the unrestricted fit is exact
	maxFStatistic = 1e12
)

// Params carries every tunable of the estimator. Nothing is read from globals.
type Params struct {
	Ordering        []Pillar     `json:"ordering"`
	Horizon         int          `json:"horizon"`
	CandidateLags   []int        `json:"candidate_lags"`
	RegimeThreshold float64      `json:"regime_threshold"`
	MinRegimeObs    int          `json:"min_regime_obs"`
	MaxPermutations int          `json:"max_permutations"`
	CausalityLags   int          `json:"causality_lags"`
	Significance    float64      `json:"significance"`
	PValueMethod    PValueMethod `json:"p_value_method"`
	RunRobustness   bool         `json:"run_robustness"`
	RunCausality    bool         `json:"run_causality"`
	// MaxWorkers bounds the robustness fan-out; 0 means GOMAXPROCS
	MaxWorkers int `json:"max_workers"`
}

// DefaultParams returns the production defaults
func DefaultParams() Params {
	return Params{
		Ordering:        DefaultOrdering(),
		Horizon:         4,
		CandidateLags:   []int{1, 2, 3, 4},
		RegimeThreshold: 0.50,
		MinRegimeObs:    30,
		MaxPermutations: 720,
		CausalityLags:   2,
		Significance:    0.05,
		PValueMethod:    PValueWilsonHilferty,
		RunRobustness:   true,
		RunCausality:    true,
	}
}

// Matrix is a dense row-major matrix used in all public results
type Matrix [][]float64

// NewMatrix allocates a zero rows×cols matrix
func NewMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// Clone returns a deep copy
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// MaxAbs returns the largest absolute entry
func (m Matrix) MaxAbs() float64 {
	maxAbs := 0.0
	for _, row := range m {
		for _, v := range row {
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
	}
	return maxAbs
}

// IsZero reports whether every entry is exactly zero
func (m Matrix) IsZero() bool {
	for _, row := range m {
		for _, v := range row {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// VAREstimate is the primary structural estimate
type VAREstimate struct {
	Pillars      []Pillar  `json:"pillars"`
	Ordering     []Pillar  `json:"ordering"`
	LagOrder     int       `json:"lag_order"`
	BIC          float64   `json:"bic"`
	Observations int       `json:"observations"`
	Coefficients []Matrix  `json:"coefficients"`
	Intercept    []float64 `json:"intercept"`
	Sigma        Matrix    `json:"residual_covariance"`
	Horizon      int       `json:"horizon"`
	// CumulativeResponse is the raw cumulative impulse response
	CumulativeResponse Matrix `json:"cumulative_response"`
	// Transmission is CumulativeResponse scaled into [-1, 1]
	Transmission Matrix `json:"transmission"`
	// Identified is false when the Cholesky factorization failed twice and the
	// reduced-form response was used instead
	Identified bool `json:"identified"`
}

// RobustnessResult summarizes the response over identification orderings
type RobustnessResult struct {
	Orderings   int    `json:"orderings"`
	Succeeded   int    `json:"succeeded"`
	Median      Matrix `json:"median"`
	Pct10       Matrix `json:"pct10"`
	Pct90       Matrix `json:"pct90"`
	Generalized Matrix `json:"generalized"`
}

// AccelerationFactors compares transmission in stress and normal regimes
type AccelerationFactors struct {
	Threshold float64 `json:"threshold"`
	NormalObs int     `json:"normal_obs"`
	StressObs int     `json:"stress_obs"`
	Normal    Matrix  `json:"normal"`
	Stress    Matrix  `json:"stress"`
	Ratio     Matrix  `json:"ratio"`
}

// CausalityResult is one pairwise Granger test
type CausalityResult struct {
	Cause       Pillar  `json:"cause"`
	Effect      Pillar  `json:"effect"`
	FStatistic  float64 `json:"f_statistic"`
	PValue      float64 `json:"p_value"`
	Lags        int     `json:"lags"`
	Significant bool    `json:"significant"`
}

// ValidationRecord is an out-of-sample error record appended by the
// scenario replay harness
type ValidationRecord struct {
	Scenario  string    `json:"scenario"`
	AsOf      time.Time `json:"as_of"`
	Predicted float64   `json:"predicted"`
	Realized  float64   `json:"realized"`
	AbsError  float64   `json:"abs_error"`
}

// SeriesSummary describes one input pillar series
type SeriesSummary struct {
	Pillar Pillar  `json:"pillar"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Report aggregates every estimator output
type Report struct {
	RunID        string               `json:"run_id"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Params       Params               `json:"params"`
	Inputs       []SeriesSummary      `json:"inputs"`
	Estimate     *VAREstimate         `json:"estimate"`
	Robustness   *RobustnessResult    `json:"robustness,omitempty"`
	Acceleration *AccelerationFactors `json:"acceleration,omitempty"`
	Causality    []CausalityResult    `json:"causality"`
	Transmission TransmissionDict     `json:"transmission"`
	Validation   []ValidationRecord   `json:"validation"`
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return ve.Message
}
