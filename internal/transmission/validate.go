package transmission

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MinObservations is the shortest level series the estimator accepts
const MinObservations = 3

// ValidateSeries checks that every pillar is present with the same length,
// at least MinObservations values and only finite numbers.
func ValidateSeries(series PillarSeries) error {
	length := -1
	for _, p := range Pillars() {
		values, ok := series[p]
		if !ok {
			return &ValidationError{Field: string(p), Message: fmt.Sprintf("missing series for pillar %q", p)}
		}
		if length < 0 {
			length = len(values)
		} else if len(values) != length {
			return &ValidationError{
				Field:   string(p),
				Message: fmt.Sprintf("series for %q has %d values, expected %d", p, len(values), length),
				Value:   len(values),
			}
		}
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ValidationError{
					Field:   string(p),
					Message: fmt.Sprintf("series for %q has a non-finite value at index %d", p, i),
					Value:   i,
				}
			}
		}
	}

	for name := range series {
		if _, err := ParsePillar(string(name)); err != nil {
			return &ValidationError{Field: string(name), Message: err.Error()}
		}
	}

	if length < MinObservations {
		return &ValidationError{
			Field:   "series",
			Message: fmt.Sprintf("need at least %d observations, got %d", MinObservations, length),
			Value:   length,
		}
	}
	return nil
}

// Validate checks parameter ranges
func (p Params) Validate() error {
	if _, err := orderingIndex(p.Ordering); err != nil {
		return err
	}
	if p.Horizon < 0 {
		return &ValidationError{Field: "horizon", Message: "horizon must not be negative", Value: p.Horizon}
	}
	if len(p.CandidateLags) == 0 {
		return &ValidationError{Field: "candidate_lags", Message: "at least one candidate lag is required"}
	}
	for _, l := range p.CandidateLags {
		if l < 1 {
			return &ValidationError{Field: "candidate_lags", Message: "candidate lags must be positive", Value: l}
		}
	}
	if p.MinRegimeObs < 1 {
		return &ValidationError{Field: "min_regime_obs", Message: "min_regime_obs must be positive", Value: p.MinRegimeObs}
	}
	if p.RunRobustness && p.MaxPermutations < 1 {
		return &ValidationError{Field: "max_permutations", Message: "max_permutations must be positive", Value: p.MaxPermutations}
	}
	if p.RunCausality && p.CausalityLags < 1 {
		return &ValidationError{Field: "causality_lags", Message: "causality_lags must be positive", Value: p.CausalityLags}
	}
	if !(p.Significance > 0 && p.Significance < 1) {
		return &ValidationError{Field: "significance", Message: "significance must be in (0, 1)", Value: p.Significance}
	}
	switch p.PValueMethod {
	case PValueWilsonHilferty, PValueExact:
	default:
		return &ValidationError{Field: "p_value_method", Message: fmt.Sprintf("unknown p-value method %q", p.PValueMethod), Value: p.PValueMethod}
	}
	if p.MaxWorkers < 0 {
		return &ValidationError{Field: "max_workers", Message: "max_workers must not be negative", Value: p.MaxWorkers}
	}
	return nil
}

// seriesMatrix lays the series out as a T×K matrix in canonical pillar order
func seriesMatrix(series PillarSeries) *mat.Dense {
	pillars := Pillars()
	t := series.Len()
	data := mat.NewDense(t, len(pillars), nil)
	for j, p := range pillars {
		for i, v := range series[p] {
			data.Set(i, j, v)
		}
	}
	return data
}
