package ml

import (
	"encoding/json"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// SVMParams configures the linear support vector classifier.
type SVMParams struct {
	C       float64 `json:"c"`
	MaxIter int     `json:"max_iter"`
	Tol     float64 `json:"tol"`
	// Workers bounds the number of one-vs-rest problems solved concurrently.
	Workers int `json:"-"`
}

// DefaultSVMParams returns the standard settings.
func DefaultSVMParams() SVMParams {
	return SVMParams{C: 1.0, MaxIter: 1000, Tol: 1e-4, Workers: 4}
}

// LinearSVM is a one-vs-rest linear support vector classifier trained on the
// squared hinge loss with an L2 penalty on weights and bias:
// 0.5*(||w||^2 + b^2) + C*sum(max(0, 1 - y*(w.x + b))^2).
// It does not estimate probabilities.
type LinearSVM struct {
	params     SVMParams
	classes    []int
	nFeatures  int
	weights    *mat.Dense
	intercepts []float64
}

var _ LinearModel = (*LinearSVM)(nil)

// NewLinearSVM creates an unfitted model.
func NewLinearSVM(params SVMParams) *LinearSVM {
	return &LinearSVM{params: params}
}

// Kind implements Model.
func (m *LinearSVM) Kind() Kind { return KindLinearSVM }

// Classes implements Model.
func (m *LinearSVM) Classes() []int { return append([]int(nil), m.classes...) }

// Clone implements Model.
func (m *LinearSVM) Clone() Model { return NewLinearSVM(m.params) }

// Params returns the hyperparameters.
func (m *LinearSVM) Params() SVMParams { return m.params }

// Fit implements Model.
func (m *LinearSVM) Fit(X *features.Matrix, y []int) error {
	if m.params.C <= 0 || m.params.MaxIter < 1 || m.params.Tol <= 0 {
		return errors.ValidationError("linear SVM needs C > 0, max_iter >= 1 and tol > 0")
	}
	if err := checkTrainingData(X, y); err != nil {
		return err
	}

	classes, encoded := encodeLabels(y)
	_, p := X.Dims()
	k := len(classes)

	weights := mat.NewDense(k, p, nil)
	intercepts := make([]float64, k)

	if k > 1 {
		var g errgroup.Group
		g.SetLimit(max(1, m.params.Workers))
		for c := 0; c < k; c++ {
			g.Go(func() error {
				sign := make([]float64, len(encoded))
				for i, e := range encoded {
					sign[i] = -1
					if e == c {
						sign[i] = 1
					}
				}
				theta, err := minimizeLBFGS(squaredHingeLoss(X, sign, m.params.C),
					make([]float64, p+1), m.params.MaxIter, m.params.Tol)
				if err != nil {
					return err
				}
				weights.SetRow(c, theta[:p])
				intercepts[c] = theta[p]
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	m.classes = classes
	m.nFeatures = p
	m.weights = weights
	m.intercepts = intercepts
	return nil
}

// squaredHingeLoss returns the primal objective of one binary problem with
// labels sign in {-1, +1}. Parameters are p weights followed by the bias.
func squaredHingeLoss(X *features.Matrix, sign []float64, c float64) objective {
	n, p := X.Dims()

	return func(theta, grad []float64) float64 {
		w, b := theta[:p], theta[p]
		f := 0.5 * (floats.Dot(w, w) + b*b)
		copy(grad, theta)

		for i := 0; i < n; i++ {
			margin := 1 - sign[i]*(X.RowDot(i, w)+b)
			if margin <= 0 {
				continue
			}
			f += c * margin * margin
			d := -2 * c * sign[i] * margin
			grad[p] += d
			idx, vals := X.Row(i)
			for t, j := range idx {
				grad[j] += d * vals[t]
			}
		}
		return f
	}
}

// DecisionFunction returns the signed distance of every row to each class's
// hyperplane.
func (m *LinearSVM) DecisionFunction(X *features.Matrix) (*mat.Dense, error) {
	if err := checkInput(m.Kind(), m.weights != nil, m.nFeatures, X); err != nil {
		return nil, err
	}
	return linearScores(X, m.weights, m.intercepts), nil
}

// Predict implements Model.
func (m *LinearSVM) Predict(X *features.Matrix) ([]int, error) {
	s, err := m.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(s, m.classes), nil
}

// Coefficients implements LinearModel.
func (m *LinearSVM) Coefficients() (*mat.Dense, error) {
	if m.weights == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return mat.DenseCopyOf(m.weights), nil
}

// MarshalJSON implements json.Marshaler.
func (m *LinearSVM) MarshalJSON() ([]byte, error) {
	if m.weights == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return json.Marshal(struct {
		Params SVMParams `json:"params"`
		linearState
	}{m.params, linearState{m.classes, m.nFeatures, denseRows(m.weights), m.intercepts}})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *LinearSVM) UnmarshalJSON(data []byte) error {
	var state struct {
		Params SVMParams `json:"params"`
		linearState
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	weights, err := state.restore()
	if err != nil {
		return err
	}
	*m = LinearSVM{
		params:     state.Params,
		classes:    state.Classes,
		nFeatures:  state.NFeatures,
		weights:    weights,
		intercepts: state.Intercepts,
	}
	return nil
}
