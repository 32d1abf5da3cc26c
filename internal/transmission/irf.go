package transmission

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// orderingIndex maps an identification ordering onto canonical column
// indices: perm[i] is the canonical index of the i-th variable in the ordering.
func orderingIndex(ordering []Pillar) ([]int, error) {
	canonical := Pillars()
	if len(ordering) != len(canonical) {
		return nil, &ValidationError{
			Field:   "ordering",
			Message: fmt.Sprintf("ordering must list all %d pillars, got %d", len(canonical), len(ordering)),
			Value:   ordering,
		}
	}

	pos := make(map[Pillar]int, len(canonical))
	for i, p := range canonical {
		pos[p] = i
	}

	perm := make([]int, len(ordering))
	seen := make(map[Pillar]bool, len(ordering))
	for i, p := range ordering {
		idx, ok := pos[p]
		if !ok {
			return nil, &ValidationError{Field: "ordering", Message: fmt.Sprintf("unknown pillar %q in ordering", p), Value: p}
		}
		if seen[p] {
			return nil, &ValidationError{Field: "ordering", Message: fmt.Sprintf("pillar %q repeated in ordering", p), Value: p}
		}
		seen[p] = true
		perm[i] = idx
	}
	return perm, nil
}

// permuteSquare returns B with B[i][j] = A[perm[i]][perm[j]]
func permuteSquare(a mat.Matrix, perm []int) *mat.Dense {
	k := len(perm)
	out := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			out.Set(i, j, a.At(perm[i], perm[j]))
		}
	}
	return out
}

// unpermuteSquare inverts permuteSquare
func unpermuteSquare(b mat.Matrix, perm []int) *mat.Dense {
	k := len(perm)
	out := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			out.Set(perm[i], perm[j], b.At(i, j))
		}
	}
	return out
}

// cumulativeMA accumulates Φ_0..Φ_h where Φ_0 = impact and
// Φ_s = Σ_{j=0}^{min(s,p)-1} A_j Φ_{s-1-j}.
func cumulativeMA(coefs []*mat.Dense, impact *mat.Dense, horizon int) *mat.Dense {
	k, _ := impact.Dims()
	p := len(coefs)

	phi := make([]*mat.Dense, horizon+1)
	phi[0] = mat.DenseCopyOf(impact)
	cum := mat.DenseCopyOf(impact)

	for s := 1; s <= horizon; s++ {
		next := mat.NewDense(k, k, nil)
		for j := 0; j < s && j < p; j++ {
			var term mat.Dense
			term.Mul(coefs[j], phi[s-1-j])
			next.Add(next, &term)
		}
		phi[s] = next
		cum.Add(cum, next)
	}
	return cum
}

// structuralImpact Cholesky-factors the permuted covariance, retrying once
// with CholeskyJitter on the diagonal.
func structuralImpact(sigma *mat.Dense) (*mat.Dense, bool) {
	if p, ok := choleskyLower(sigma); ok {
		return p, true
	}
	k, _ := sigma.Dims()
	jittered := mat.DenseCopyOf(sigma)
	for i := 0; i < k; i++ {
		jittered.Set(i, i, jittered.At(i, i)+CholeskyJitter)
	}
	return choleskyLower(jittered)
}

// choleskyResponse computes the Cholesky-identified cumulative impulse
// response under the given ordering, returned in canonical order.
// ok=false means the covariance could not be factored even after the retry.
func choleskyResponse(fit *varFit, perm []int, horizon int) (*mat.Dense, bool) {
	sigma := permuteSquare(fit.sigma, perm)
	impact, ok := structuralImpact(sigma)
	if !ok {
		return nil, false
	}

	coefs := make([]*mat.Dense, len(fit.coefs))
	for j, a := range fit.coefs {
		coefs[j] = permuteSquare(a, perm)
	}

	cum := cumulativeMA(coefs, impact, horizon)
	return unpermuteSquare(cum, perm), true
}

// reducedFormResponse returns C(h) = Σ_{s=0}^{h} Ψ_s with Ψ_0 = I.
// It is the unidentified fallback when the Cholesky factorization fails.
func reducedFormResponse(fit *varFit, horizon int) *mat.Dense {
	return cumulativeMA(fit.coefs, identity(fit.k()), horizon)
}

// generalizedResponse returns the ordering-invariant generalized impulse
// response GIRF[:,j] = C(h)·Σ[:,j]/√Σ[j,j]. Columns with non-positive
// variance are zero.
func generalizedResponse(fit *varFit, horizon int) *mat.Dense {
	k := fit.k()
	c := reducedFormResponse(fit, horizon)

	var cs mat.Dense
	cs.Mul(c, fit.sigma)

	out := mat.NewDense(k, k, nil)
	for j := 0; j < k; j++ {
		sjj := fit.sigma.At(j, j)
		if !(sjj > 0) {
			continue
		}
		scale := math.Sqrt(sjj)
		for i := 0; i < k; i++ {
			out.Set(i, j, cs.At(i, j)/scale)
		}
	}
	return out
}

// Normalize divides a matrix by its largest absolute entry so that the result
// lies in [-1, 1]. The zero matrix is returned unchanged.
func Normalize(m Matrix) Matrix {
	maxAbs := m.MaxAbs()
	out := m.Clone()
	if maxAbs == 0 || math.IsNaN(maxAbs) || math.IsInf(maxAbs, 0) {
		return out
	}
	for i := range out {
		for j := range out[i] {
			out[i][j] = out[i][j] / maxAbs
		}
	}
	return out
}
