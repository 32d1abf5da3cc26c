package transmission

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// alignComposite aligns the composite score series with the differenced
// sample of length n. A series of the level length (n+1) loses its first
// value; a series already of length n is used as is.
func alignComposite(composite []float64, n int) ([]float64, error) {
	switch len(composite) {
	case n + 1:
		return composite[1:], nil
	case n:
		return composite, nil
	default:
		return nil, &ValidationError{
			Field:   "composite",
			Message: fmt.Sprintf("composite series has %d values, expected %d or %d", len(composite), n+1, n),
			Value:   len(composite),
		}
	}
}

// splitRegimes partitions the rows of data into normal (score > threshold)
// and stress (score <= threshold) sub-samples. Row order is preserved.
func splitRegimes(data *mat.Dense, scores []float64, threshold float64) (normal, stress *mat.Dense) {
	_, k := data.Dims()

	var normalRows, stressRows []int
	for i, s := range scores {
		if s > threshold {
			normalRows = append(normalRows, i)
		} else {
			stressRows = append(stressRows, i)
		}
	}
	return selectRows(data, normalRows, k), selectRows(data, stressRows, k)
}

func selectRows(data *mat.Dense, rows []int, k int) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	out := mat.NewDense(len(rows), k, nil)
	for i, r := range rows {
		out.SetRow(i, data.RawRowView(r))
	}
	return out
}

// regimeTransmission runs lag selection, fit, Cholesky response and
// normalization on one sub-sample. Sub-samples below minObs return the zero
// matrix. The second return value is false when the sub-sample was skipped.
func regimeTransmission(sample *mat.Dense, k int, perm []int, p Params) (Matrix, bool) {
	if sample == nil {
		return NewMatrix(k, k), false
	}
	if n, _ := sample.Dims(); n < p.MinRegimeObs {
		return NewMatrix(k, k), false
	}

	fit := selectLag(sample, p.CandidateLags)
	resp, ok := choleskyResponse(fit, perm, p.Horizon)
	if !ok {
		resp = reducedFormResponse(fit, p.Horizon)
	}
	return Normalize(toMatrix(resp)), true
}

// accelerationRatio returns |stress|/|normal| element-wise, 1.0 where the
// normal entry is numerically zero, clipped to [0, MaxAcceleration].
func accelerationRatio(normal, stress Matrix) Matrix {
	out := NewMatrix(len(normal), len(normal))
	for i := range normal {
		for j := range normal[i] {
			n := math.Abs(normal[i][j])
			if n < NumericalZero {
				out[i][j] = 1.0
				continue
			}
			r := math.Abs(stress[i][j]) / n
			if math.IsNaN(r) {
				r = 1.0
			}
			out[i][j] = math.Min(math.Max(r, 0), MaxAcceleration)
		}
	}
	return out
}

// acceleration estimates regime-conditional transmission on differenced data
func acceleration(diffed *mat.Dense, composite []float64, perm []int, p Params) (*AccelerationFactors, error) {
	n, k := diffed.Dims()
	scores, err := alignComposite(composite, n)
	if err != nil {
		return nil, err
	}

	normalSample, stressSample := splitRegimes(diffed, scores, p.RegimeThreshold)
	normal, _ := regimeTransmission(normalSample, k, perm, p)
	stress, _ := regimeTransmission(stressSample, k, perm, p)

	return &AccelerationFactors{
		Threshold: p.RegimeThreshold,
		NormalObs: rowCount(normalSample),
		StressObs: rowCount(stressSample),
		Normal:    normal,
		Stress:    stress,
		Ratio:     accelerationRatio(normal, stress),
	}, nil
}

func rowCount(m *mat.Dense) int {
	if m == nil {
		return 0
	}
	r, _ := m.Dims()
	return r
}
