package gsgp

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// epsilon replaces zero denominators in the multiplicative update.
const epsilon = 1.1920929e-07

// convergenceCheckInterval is how often, in iterations, the residual is measured.
const convergenceCheckInterval = 10

// NMFOptions controls the fixed-basis factorization.
type NMFOptions struct {
	MaxIter int
	Tol     float64
	// Seed, when set, draws the initial exposures at random instead of
	// starting from a constant matrix.
	Seed *uint64
}

// DefaultNMFOptions returns the solver defaults.
func DefaultNMFOptions() NMFOptions {
	return NMFOptions{MaxIter: 1000, Tol: 1e-16}
}

// NMFResult is the exposure matrix and solver diagnostics.
type NMFResult struct {
	W          *mat.Dense
	Iterations int
	Residual   float64 // Frobenius norm of X - WH at the last check
}

// FactorFixed finds W >= 0 minimizing ||X - WH||_F with H held constant,
// using multiplicative updates. X is n × m, H is k × m, W is n × k.
func FactorFixed(x, h mat.Matrix, opts NMFOptions) (*NMFResult, error) {
	n, m := x.Dims()
	k, hm := h.Dims()
	if hm != m {
		return nil, fmt.Errorf("dimension mismatch: X has %d columns, H has %d", m, hm)
	}
	if n == 0 || m == 0 || k == 0 {
		return nil, errors.New("empty matrix")
	}
	if opts.MaxIter <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", opts.MaxIter)
	}
	if err := checkNonNegative("X", x); err != nil {
		return nil, err
	}
	if err := checkNonNegative("H", h); err != nil {
		return nil, err
	}

	w := initExposures(x, n, m, k, opts.Seed)

	var xht, hht mat.Dense
	xht.Mul(x, h.T())
	hht.Mul(h, h.T())

	errInit := residual(x, w, h)
	prevErr := errInit
	res := &NMFResult{W: w, Residual: errInit}

	var denom mat.Dense
	for iter := 1; iter <= opts.MaxIter; iter++ {
		denom.Mul(w, &hht)
		for i := range n {
			for j := range k {
				d := denom.At(i, j)
				if d == 0 {
					d = epsilon
				}
				w.Set(i, j, w.At(i, j)*xht.At(i, j)/d)
			}
		}
		res.Iterations = iter

		if opts.Tol > 0 && iter%convergenceCheckInterval == 0 {
			cur := residual(x, w, h)
			res.Residual = cur
			if errInit == 0 || (prevErr-cur)/errInit < opts.Tol {
				break
			}
			prevErr = cur
		}
	}

	for i := range n {
		for j := range k {
			if v := w.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("solver produced non-finite exposure at (%d, %d)", i, j)
			}
		}
	}
	return res, nil
}

// initExposures starts every entry at sqrt(mean(X)/k), or scales absolute
// normal draws by that value when a seed is given.
func initExposures(x mat.Matrix, n, m, k int, seed *uint64) *mat.Dense {
	avg := math.Sqrt(mat.Sum(x) / float64(n*m) / float64(k))

	w := mat.NewDense(n, k, nil)
	if seed == nil {
		for i := range n {
			for j := range k {
				w.Set(i, j, avg)
			}
		}
		return w
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	for i := range n {
		for j := range k {
			w.Set(i, j, avg*math.Abs(rng.NormFloat64()))
		}
	}
	return w
}

func residual(x, w, h mat.Matrix) float64 {
	var wh, diff mat.Dense
	wh.Mul(w, h)
	diff.Sub(x, &wh)
	return mat.Norm(&diff, 2)
}

func checkNonNegative(name string, m mat.Matrix) error {
	r, c := m.Dims()
	for i := range r {
		for j := range c {
			if v := m.At(i, j); v < 0 || math.IsNaN(v) {
				return fmt.Errorf("%s has invalid entry %g at (%d, %d)", name, v, i, j)
			}
		}
	}
	return nil
}
