package transmission

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// grangerTest tests whether lags of column cause help predict column effect
// beyond effect's own lags. Both models carry an intercept.
func grangerTest(data *mat.Dense, cause, effect, lags int, method PValueMethod) (f, pValue float64) {
	t, _ := data.Dims()
	n := t - lags
	if lags < 1 || n <= 2*lags+5 {
		return 0, 1
	}

	y := mat.NewDense(n, 1, nil)
	xr := mat.NewDense(n, lags+1, nil)
	xu := mat.NewDense(n, 2*lags+1, nil)
	for row := 0; row < n; row++ {
		at := row + lags
		y.Set(row, 0, data.At(at, effect))
		xr.Set(row, 0, 1)
		xu.Set(row, 0, 1)
		for j := 1; j <= lags; j++ {
			own := data.At(at-j, effect)
			xr.Set(row, j, own)
			xu.Set(row, j, own)
			xu.Set(row, lags+j, data.At(at-j, cause))
		}
	}

	rssR := residualSumSquares(xr, y)
	rssU := residualSumSquares(xu, y)

	q := float64(lags)
	dof := float64(n - (2*lags + 1))
	num := rssR - rssU
	if num < 0 {
		num = 0
	}

	switch {
	case num == 0 || math.IsNaN(num):
		return 0, 1
	case rssU <= NumericalZero*NumericalZero:
		f = maxFStatistic
	default:
		f = (num / q) / (rssU / dof)
		if math.IsInf(f, 0) || f > maxFStatistic {
			f = maxFStatistic
		}
	}
	return f, fPValue(f, q, dof, method)
}

func residualSumSquares(x, y *mat.Dense) float64 {
	beta := solveOLS(x, y)
	var fitted, resid mat.Dense
	fitted.Mul(x, beta)
	resid.Sub(y, &fitted)
	col := resid.ColView(0)
	return mat.Dot(col, col)
}

// fPValue returns the upper-tail probability of F(d1, d2) at f, clamped to
// [0, 1]. Non-positive or undefined statistics give 1.
func fPValue(f, d1, d2 float64, method PValueMethod) float64 {
	if !(f > 0) || d1 <= 0 || d2 <= 0 {
		return 1
	}

	var p float64
	if method == PValueExact {
		p = 1 - distuv.F{D1: d1, D2: d2}.CDF(f)
	} else {
		p = wilsonHilferty(f, d1, d2)
	}

	if math.IsNaN(p) {
		return 1
	}
	return math.Min(math.Max(p, 0), 1)
}

// wilsonHilferty approximates the F upper tail with the cube-root normal
// transform and the standard normal complementary error function.
func wilsonHilferty(f, d1, d2 float64) float64 {
	a := 2 / (9 * d1)
	b := 2 / (9 * d2)
	cube := math.Cbrt(f)
	z := ((1-b)*cube - (1 - a)) / math.Sqrt(a+b*cube*cube)
	return 0.5 * math.Erfc(z/math.Sqrt2)
}

// causality runs the Granger test for every ordered pillar pair in canonical
// order: cause-major, effect-minor, skipping the diagonal.
func causality(diffed *mat.Dense, p Params) []CausalityResult {
	pillars := Pillars()
	results := make([]CausalityResult, 0, len(pillars)*(len(pillars)-1))
	for ci, cause := range pillars {
		for ei, effect := range pillars {
			if ci == ei {
				continue
			}
			f, pv := grangerTest(diffed, ci, ei, p.CausalityLags, p.PValueMethod)
			results = append(results, CausalityResult{
				Cause:       cause,
				Effect:      effect,
				FStatistic:  f,
				PValue:      pv,
				Lags:        p.CausalityLags,
				Significant: pv < p.Significance,
			})
		}
	}
	return results
}
