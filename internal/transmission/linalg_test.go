package transmission

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCholeskyLower(t *testing.T) {
	tests := []struct {
		name string
		a    *mat.Dense
		ok   bool
	}{
		{"identity", identity(3), true},
		{"spd", mat.NewDense(2, 2, []float64{4, 2, 2, 3}), true},
		{"zero", mat.NewDense(2, 2, nil), false},
		{"indefinite", mat.NewDense(2, 2, []float64{1, 2, 2, 1}), false},
		{"nan pivot", mat.NewDense(1, 1, []float64{math.NaN()}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, ok := choleskyLower(tt.a)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				assert.Nil(t, l)
				return
			}
			var llt mat.Dense
			llt.Mul(l, l.T())
			assert.True(t, mat.EqualApprox(&llt, tt.a, 1e-12))
			n, _ := l.Dims()
			for i := 0; i < n; i++ {
				for j := i + 1; j < n; j++ {
					assert.Zero(t, l.At(i, j), "factor must be lower triangular")
				}
			}
		})
	}
}

func TestCholeskySolve(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		4, 1, 0,
		1, 3, 1,
		0, 1, 2,
	})
	want := mat.NewDense(3, 2, []float64{1, -1, 2, 0.5, -3, 4})
	var b mat.Dense
	b.Mul(a, want)

	got, ok := choleskySolve(a, &b)
	require.True(t, ok)
	assert.True(t, mat.EqualApprox(got, want, 1e-10))

	_, ok = choleskySolve(mat.NewDense(2, 2, []float64{0, 0, 0, -1}), mat.NewDense(2, 1, nil))
	assert.False(t, ok)
}

func TestSolveOLS(t *testing.T) {
	t.Run("recovers exact linear relation", func(t *testing.T) {
		x := mat.NewDense(50, 3, nil)
		y := mat.NewDense(50, 1, nil)
		for i := 0; i < 50; i++ {
			a := float64(i) / 10
			b := math.Sin(float64(i))
			x.SetRow(i, []float64{1, a, b})
			y.Set(i, 0, 0.5+2*a-3*b)
		}
		beta := solveOLS(x, y)
		assert.InDelta(t, 0.5, beta.At(0, 0), 1e-6)
		assert.InDelta(t, 2.0, beta.At(1, 0), 1e-6)
		assert.InDelta(t, -3.0, beta.At(2, 0), 1e-6)
	})

	t.Run("zero design does not fail", func(t *testing.T) {
		x := mat.NewDense(10, 3, nil)
		y := mat.NewDense(10, 2, nil)
		for i := 0; i < 10; i++ {
			y.Set(i, 0, 1)
		}
		beta := solveOLS(x, y)
		r, c := beta.Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, 2, c)
		for _, v := range beta.RawMatrix().Data {
			assert.False(t, math.IsNaN(v))
		}
	})

	t.Run("svd fallback on zero design gives zero beta", func(t *testing.T) {
		beta := svdSolve(mat.NewDense(5, 2, nil), mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5}))
		assert.Equal(t, []float64{0, 0}, beta.RawMatrix().Data)
	})
}

func TestLogDetSPD(t *testing.T) {
	d, ok := logDetSPD(mat.NewDense(2, 2, []float64{2, 0, 0, 3}))
	require.True(t, ok)
	assert.InDelta(t, math.Log(6), d, 1e-12)

	_, ok = logDetSPD(mat.NewDense(2, 2, nil))
	assert.False(t, ok)
}

func TestMatrixConversions(t *testing.T) {
	m := Matrix{{1, 2}, {3, 4}}
	d := toDense(m)
	require.NotNil(t, d)
	assert.Equal(t, m, toMatrix(d))
	assert.Nil(t, toDense(Matrix{}))
}
