package transmission

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDifference(t *testing.T) {
	levels := mat.NewDense(3, 2, []float64{1, 10, 3, 7, 6, 7})
	d := difference(levels)
	require.NotNil(t, d)
	assert.Equal(t, []float64{2, -3, 3, 0}, d.RawMatrix().Data)

	assert.Nil(t, difference(mat.NewDense(1, 2, nil)))
}

func TestBuildVARDesign(t *testing.T) {
	data := mat.NewDense(4, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
		7, 8,
	})
	y, x := buildVARDesign(data, 2)

	yr, yc := y.Dims()
	assert.Equal(t, 2, yr)
	assert.Equal(t, 2, yc)
	assert.Equal(t, []float64{5, 6}, y.RawRowView(0))

	_, xc := x.Dims()
	assert.Equal(t, 5, xc)
	// [1, y_{t-1}, y_{t-2}]
	assert.Equal(t, []float64{1, 3, 4, 1, 2}, x.RawRowView(0))
	assert.Equal(t, []float64{1, 5, 6, 3, 4}, x.RawRowView(1))
}

func TestFitVARRecoversCoefficients(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := mat.NewDense(2, 2, []float64{0.5, 0.2, -0.1, 0.3})

	const n = 4000
	data := mat.NewDense(n, 2, nil)
	for i := 1; i < n; i++ {
		for eq := 0; eq < 2; eq++ {
			v := 0.1 + a.At(eq, 0)*data.At(i-1, 0) + a.At(eq, 1)*data.At(i-1, 1) + rng.NormFloat64()
			data.Set(i, eq, v)
		}
	}

	fit := fitVAR(data, 1)
	require.Len(t, fit.coefs, 1)
	assert.True(t, mat.EqualApprox(fit.coefs[0], a, 0.05), "coefficients %v", mat.Formatted(fit.coefs[0]))
	assert.InDelta(t, 0.1, fit.intercept[0], 0.05)
	assert.InDelta(t, 1.0, fit.sigma.At(0, 0), 0.1)
	assert.InDelta(t, 0.0, fit.sigma.At(0, 1), 0.1)
	assert.Equal(t, n-1, fit.n)
	assert.Equal(t, 2, fit.k())
}

func TestFitVARDegenerate(t *testing.T) {
	t.Run("too short for lag", func(t *testing.T) {
		fit := fitVAR(mat.NewDense(2, 3, nil), 4)
		assert.Equal(t, math.MaxFloat64, fit.bic)
		assert.Equal(t, 0, fit.n)
		assert.Len(t, fit.coefs, 4)
	})

	t.Run("zero variance uses degenerate log determinant", func(t *testing.T) {
		fit := fitVAR(mat.NewDense(30, 3, nil), 1)
		expected := float64(fit.n)*DegenerateLogDet + float64(9+3)*math.Log(float64(fit.n))
		assert.InDelta(t, expected, fit.bic, 1)
		for _, c := range fit.coefs {
			for _, v := range c.RawMatrix().Data {
				assert.InDelta(t, 0, v, 1e-12)
			}
		}
	})
}

func TestSelectLag(t *testing.T) {
	t.Run("iid noise selects lag one", func(t *testing.T) {
		ones := 0
		const draws = 20
		for seed := int64(1); seed <= draws; seed++ {
			fit := selectLag(iidMatrix(seed, 200, 6), []int{1, 2, 3, 4})
			if fit.lag == 1 {
				ones++
			}
		}
		assert.GreaterOrEqual(t, ones, draws-1)
	})

	t.Run("skips lags without headroom", func(t *testing.T) {
		// t = 13 admits only lags < 3
		fit := selectLag(iidMatrix(3, 13, 2), []int{3, 4, 2})
		assert.Equal(t, 2, fit.lag)
	})

	t.Run("falls back to first candidate", func(t *testing.T) {
		fit := selectLag(iidMatrix(3, 8, 2), []int{3, 1})
		assert.Equal(t, 3, fit.lag)
	})
}

func TestScoreLags(t *testing.T) {
	scores, err := ScoreLags(randomWalkSeries(11, 120, 0.02), []int{1, 2, 3, 4})
	require.NoError(t, err)
	require.Len(t, scores, 4)
	for i, s := range scores {
		assert.Equal(t, i+1, s.Lag)
		assert.False(t, math.IsNaN(s.BIC))
	}

	_, err = ScoreLags(PillarSeries{}, []int{1})
	assert.Error(t, err)
}

func TestFitFromEstimate(t *testing.T) {
	fit := correlatedFit(5, 300)
	est := &VAREstimate{
		Pillars:      Pillars(),
		LagOrder:     fit.lag,
		BIC:          fit.bic,
		Observations: fit.n,
		Coefficients: []Matrix{toMatrix(fit.coefs[0])},
		Intercept:    fit.intercept,
		Sigma:        toMatrix(fit.sigma),
	}

	rebuilt := fitFromEstimate(est)
	assert.Equal(t, fit.lag, rebuilt.lag)
	assert.True(t, mat.Equal(fit.sigma, rebuilt.sigma))
	assert.True(t, mat.Equal(fit.coefs[0], rebuilt.coefs[0]))
}
