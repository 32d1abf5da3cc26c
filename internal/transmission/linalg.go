package transmission

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// solveOLS solves Y = Xβ in the least-squares sense through the ridge
// regularized normal equations (X'X + λI)β = X'Y. When the Cholesky solve of
// the normal equations fails, it falls back to an SVD minimum-norm solution.
// The returned β is m×k for an n×m design and n×k response.
func solveOLS(x, y *mat.Dense) *mat.Dense {
	_, m := x.Dims()

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 0; i < m; i++ {
		xtx.Set(i, i, xtx.At(i, i)+RidgeLambda)
	}

	var xty mat.Dense
	xty.Mul(x.T(), y)

	if beta, ok := choleskySolve(&xtx, &xty); ok {
		return beta
	}
	return svdSolve(x, y)
}

// svdSolve is the least-squares fallback for badly conditioned designs.
// A numerically zero design yields an all-zero β.
func svdSolve(x, y *mat.Dense) *mat.Dense {
	_, m := x.Dims()
	_, k := y.Dims()
	zero := mat.NewDense(m, k, nil)

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return zero
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return zero
	}

	var beta mat.Dense
	svd.SolveTo(&beta, y, rank)
	return &beta
}

// choleskyLower factors a symmetric positive-definite matrix as L·L'.
// It returns ok=false as soon as a pivot is not strictly positive, so the
// caller can retry or fall back instead of panicking.
func choleskyLower(a mat.Matrix) (*mat.Dense, bool) {
	n, c := a.Dims()
	if n != c || n == 0 {
		return nil, false
	}

	l := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		sum := a.At(j, j)
		for k := 0; k < j; k++ {
			sum -= l.At(j, k) * l.At(j, k)
		}
		if !(sum > 0) || math.IsInf(sum, 0) {
			return nil, false
		}
		pivot := math.Sqrt(sum)
		l.Set(j, j, pivot)

		for i := j + 1; i < n; i++ {
			s := a.At(i, j)
			for k := 0; k < j; k++ {
				s -= l.At(i, k) * l.At(j, k)
			}
			l.Set(i, j, s/pivot)
		}
	}
	return l, true
}

// choleskySolve solves A·X = B for SPD A by forward and back substitution
// on its Cholesky factor. ok=false signals that A is not positive definite.
func choleskySolve(a, b *mat.Dense) (*mat.Dense, bool) {
	l, ok := choleskyLower(a)
	if !ok {
		return nil, false
	}

	n, k := b.Dims()
	x := mat.NewDense(n, k, nil)
	z := make([]float64, n)

	for col := 0; col < k; col++ {
		// L z = b
		for i := 0; i < n; i++ {
			s := b.At(i, col)
			for j := 0; j < i; j++ {
				s -= l.At(i, j) * z[j]
			}
			z[i] = s / l.At(i, i)
		}
		// L' x = z
		for i := n - 1; i >= 0; i-- {
			s := z[i]
			for j := i + 1; j < n; j++ {
				s -= l.At(j, i) * x.At(j, col)
			}
			x.Set(i, col, s/l.At(i, i))
		}
	}

	for _, v := range x.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return x, true
}

// logDetSPD returns ln|A| through the Cholesky factor, and ok=false when the
// determinant is not strictly positive.
func logDetSPD(a mat.Matrix) (float64, bool) {
	l, ok := choleskyLower(a)
	if !ok {
		return 0, false
	}
	n, _ := l.Dims()
	logDet := 0.0
	for i := 0; i < n; i++ {
		logDet += 2 * math.Log(l.At(i, i))
	}
	if math.IsNaN(logDet) || math.IsInf(logDet, 0) {
		return 0, false
	}
	return logDet, true
}

// toMatrix copies a gonum matrix into the public row-major representation
func toMatrix(a mat.Matrix) Matrix {
	r, c := a.Dims()
	out := NewMatrix(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[i][j] = a.At(i, j)
		}
	}
	return out
}

// toDense copies the public representation into a gonum matrix
func toDense(m Matrix) *mat.Dense {
	r := len(m)
	if r == 0 {
		return nil
	}
	c := len(m[0])
	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		d.SetRow(i, m[i])
	}
	return d
}

func identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}
