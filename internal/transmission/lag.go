package transmission

import (
	"gonum.org/v1/gonum/mat"
)

// selectLag fits every admissible candidate lag and returns the fit with the
// lowest BIC. A candidate is admissible when lag < T-LagHeadroom. When no
// candidate qualifies the first candidate is fitted anyway.
func selectLag(data *mat.Dense, candidates []int) *varFit {
	t, _ := data.Dims()

	var best *varFit
	for _, p := range candidates {
		if p < 1 || p >= t-LagHeadroom {
			continue
		}
		fit := fitVAR(data, p)
		if best == nil || fit.bic < best.bic {
			best = fit
		}
	}
	if best != nil {
		return best
	}

	fallback := 1
	if len(candidates) > 0 && candidates[0] > 0 {
		fallback = candidates[0]
	}
	return fitVAR(data, fallback)
}

// LagScore is the BIC of one candidate lag
type LagScore struct {
	Lag int     `json:"lag"`
	BIC float64 `json:"bic"`
}

// ScoreLags reports the BIC of every admissible candidate on the differenced
// series. It is a diagnostic view of what the estimator selects from.
func ScoreLags(series PillarSeries, candidates []int) ([]LagScore, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	diffed := difference(seriesMatrix(series))
	t, _ := diffed.Dims()

	scores := make([]LagScore, 0, len(candidates))
	for _, p := range candidates {
		if p < 1 || p >= t-LagHeadroom {
			continue
		}
		scores = append(scores, LagScore{Lag: p, BIC: fitVAR(diffed, p).bic})
	}
	return scores, nil
}
