package transmission

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// varFit is a reduced-form VAR(p) fitted on differenced data.
// coefs[j] is the K×K matrix A_{j+1}; row = equation, column = regressor.
type varFit struct {
	lag       int
	coefs     []*mat.Dense
	intercept []float64
	sigma     *mat.SymDense
	n         int
	bic       float64
}

// k returns the number of variables
func (f *varFit) k() int {
	return f.sigma.SymmetricDim()
}

// difference returns the first differences of every column (T-1 rows)
func difference(levels *mat.Dense) *mat.Dense {
	t, k := levels.Dims()
	if t < 2 {
		return nil
	}
	out := mat.NewDense(t-1, k, nil)
	for i := 1; i < t; i++ {
		for j := 0; j < k; j++ {
			out.Set(i-1, j, levels.At(i, j)-levels.At(i-1, j))
		}
	}
	return out
}

// buildVARDesign returns the response rows p..T-1 and the design
// [1, y_{t-1}, ..., y_{t-p}] with K·p+1 columns.
func buildVARDesign(data *mat.Dense, p int) (y, x *mat.Dense) {
	t, k := data.Dims()
	n := t - p

	y = mat.NewDense(n, k, nil)
	x = mat.NewDense(n, k*p+1, nil)
	for row := 0; row < n; row++ {
		for v := 0; v < k; v++ {
			y.Set(row, v, data.At(row+p, v))
		}
		x.Set(row, 0, 1)
		col := 1
		for j := 1; j <= p; j++ {
			src := row + p - j
			for v := 0; v < k; v++ {
				x.Set(row, col, data.At(src, v))
				col++
			}
		}
	}
	return y, x
}

// fitVAR estimates a VAR(p) by OLS and scores it with BIC.
// Samples too short for the lag produce a degenerate fit with zero
// coefficients, zero covariance and the degenerate BIC.
func fitVAR(data *mat.Dense, p int) *varFit {
	t, k := data.Dims()
	n := t - p
	if p < 1 || n < 1 {
		return degenerateFit(k, p, n)
	}

	y, x := buildVARDesign(data, p)
	beta := solveOLS(x, y)

	coefs := make([]*mat.Dense, p)
	for j := 0; j < p; j++ {
		a := mat.NewDense(k, k, nil)
		offset := 1 + j*k
		for eq := 0; eq < k; eq++ {
			for v := 0; v < k; v++ {
				a.Set(eq, v, beta.At(offset+v, eq))
			}
		}
		coefs[j] = a
	}
	intercept := make([]float64, k)
	for eq := 0; eq < k; eq++ {
		intercept[eq] = beta.At(0, eq)
	}

	var fitted, resid mat.Dense
	fitted.Mul(x, beta)
	resid.Sub(y, &fitted)

	var utu mat.Dense
	utu.Mul(resid.T(), &resid)
	sigma := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sigma.SetSym(i, j, utu.At(i, j)/float64(n))
		}
	}

	return &varFit{
		lag:       p,
		coefs:     coefs,
		intercept: intercept,
		sigma:     sigma,
		n:         n,
		bic:       bic(sigma, n, k, p),
	}
}

// bic computes n·ln|Σ| + (K²p + K)·ln(n), substituting DegenerateLogDet when
// the determinant is not positive
func bic(sigma *mat.SymDense, n, k, p int) float64 {
	logDet, ok := logDetSPD(sigma)
	if !ok {
		logDet = DegenerateLogDet
	}
	params := float64(k*k*p + k)
	return float64(n)*logDet + params*math.Log(float64(n))
}

func degenerateFit(k, p, n int) *varFit {
	if p < 1 {
		p = 1
	}
	coefs := make([]*mat.Dense, p)
	for j := range coefs {
		coefs[j] = mat.NewDense(k, k, nil)
	}
	if n < 0 {
		n = 0
	}
	return &varFit{
		lag:       p,
		coefs:     coefs,
		intercept: make([]float64, k),
		sigma:     mat.NewSymDense(k, nil),
		n:         n,
		bic:       math.MaxFloat64,
	}
}

// fitFromEstimate rebuilds the reduced-form fit carried by an estimate
func fitFromEstimate(est *VAREstimate) *varFit {
	k := len(est.Pillars)
	coefs := make([]*mat.Dense, len(est.Coefficients))
	for j, c := range est.Coefficients {
		coefs[j] = toDense(c)
	}
	sigma := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sigma.SetSym(i, j, est.Sigma[i][j])
		}
	}
	return &varFit{
		lag:       est.LagOrder,
		coefs:     coefs,
		intercept: append([]float64(nil), est.Intercept...),
		sigma:     sigma,
		n:         est.Observations,
		bic:       est.BIC,
	}
}
