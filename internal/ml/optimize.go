package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// objective evaluates a loss and writes its gradient into grad.
type objective func(x, grad []float64) float64

// memoized shares one evaluation between the Func and Grad callbacks that
// the optimizer issues for the same point.
type memoized struct {
	eval  objective
	x     []float64
	f     float64
	grad  []float64
	valid bool
}

func newMemoized(eval objective, dim int) *memoized {
	return &memoized{
		eval: eval,
		x:    make([]float64, dim),
		grad: make([]float64, dim),
	}
}

func (m *memoized) update(x []float64) {
	if m.valid && floats.Equal(x, m.x) {
		return
	}
	copy(m.x, x)
	m.f = m.eval(x, m.grad)
	m.valid = true
}

func (m *memoized) problem() optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 {
			m.update(x)
			return m.f
		},
		Grad: func(grad, x []float64) {
			m.update(x)
			copy(grad, m.grad)
		},
	}
}

// minimizeLBFGS minimizes eval from x0. Hitting the iteration limit is not
// an error; the best point reached is returned.
func minimizeLBFGS(eval objective, x0 []float64, maxIter int, tol float64) ([]float64, error) {
	m := newMemoized(eval, len(x0))
	settings := &optimize.Settings{
		GradientThreshold: tol,
		MajorIterations:   maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 25,
		},
	}

	result, err := optimize.Minimize(m.problem(), x0, settings, &optimize.LBFGS{})
	if result == nil || !allFinite(result.X) {
		if err == nil {
			err = errors.New(errors.CodeMLError, "optimizer produced no usable solution")
		}
		return nil, errors.MLError("L-BFGS failed", err)
	}
	// A failed line search near the optimum still leaves a valid point.
	return result.X, nil
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return len(x) > 0
}
