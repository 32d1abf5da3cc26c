package transmission

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// permutations enumerates orderings of base in lexicographic order of
// positions, starting with base itself, and stops after limit orderings.
func permutations(base []int, limit int) [][]int {
	n := len(base)
	if limit <= 0 || n == 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	var out [][]int
	for {
		perm := make([]int, n)
		for i, j := range idx {
			perm[i] = base[j]
		}
		out = append(out, perm)
		if len(out) >= limit || !nextPermutation(idx) {
			return out
		}
	}
}

// nextPermutation advances idx to its lexicographic successor in place and
// reports false once the last permutation has been reached.
func nextPermutation(idx []int) bool {
	i := len(idx) - 2
	for i >= 0 && idx[i] >= idx[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(idx) - 1
	for idx[j] <= idx[i] {
		j--
	}
	idx[i], idx[j] = idx[j], idx[i]
	for l, r := i+1, len(idx)-1; l < r; l, r = l+1, r-1 {
		idx[l], idx[r] = idx[r], idx[l]
	}
	return true
}

// robustness computes the Cholesky-identified response for every sampled
// ordering from one shared fit and summarizes the element-wise distribution.
// Permutations are evaluated concurrently; every goroutine owns one slot of
// the result slice, so aggregation after Wait needs no locking.
func robustness(ctx context.Context, fit *varFit, base []int, horizon, maxPerms, workers int) (*RobustnessResult, error) {
	k := fit.k()
	perms := permutations(base, maxPerms)
	responses := make([]*mat.Dense, len(perms))

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, perm := range perms {
		i, perm := i, perm
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if resp, ok := choleskyResponse(fit, perm, horizon); ok {
				responses[i] = resp
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &RobustnessResult{
		Orderings:   len(perms),
		Median:      NewMatrix(k, k),
		Pct10:       NewMatrix(k, k),
		Pct90:       NewMatrix(k, k),
		Generalized: toMatrix(generalizedResponse(fit, horizon)),
	}

	succeeded := make([]*mat.Dense, 0, len(responses))
	for _, r := range responses {
		if r != nil {
			succeeded = append(succeeded, r)
		}
	}
	result.Succeeded = len(succeeded)
	if len(succeeded) == 0 {
		return result, nil
	}

	samples := make([]float64, len(succeeded))
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			for s, r := range succeeded {
				samples[s] = r.At(i, j)
			}
			sort.Float64s(samples)
			result.Pct10[i][j] = quantile(samples, 0.10)
			result.Median[i][j] = quantile(samples, 0.50)
			result.Pct90[i][j] = quantile(samples, 0.90)
		}
	}
	return result, nil
}

// quantile returns the q-quantile of sorted samples using linear
// interpolation between order statistics.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
