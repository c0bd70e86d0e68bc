package ml

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// LogisticParams configures multinomial logistic regression.
type LogisticParams struct {
	// C is the inverse regularization strength.
	C       float64 `json:"c"`
	MaxIter int     `json:"max_iter"`
	Tol     float64 `json:"tol"`
}

// DefaultLogisticParams returns the standard settings.
func DefaultLogisticParams() LogisticParams {
	return LogisticParams{C: 1.0, MaxIter: 1000, Tol: 1e-4}
}

func (p LogisticParams) validate() error {
	if p.C <= 0 || p.MaxIter < 1 || p.Tol <= 0 {
		return errors.ValidationError("logistic regression needs C > 0, max_iter >= 1 and tol > 0")
	}
	return nil
}

// LogisticRegression is a multinomial (softmax) classifier with an L2
// penalty on the weights, fitted with L-BFGS. It minimizes
// 0.5*||W||^2 + C*sum(cross-entropy); intercepts are not penalized.
type LogisticRegression struct {
	params     LogisticParams
	classes    []int
	nFeatures  int
	weights    *mat.Dense // classes x features
	intercepts []float64
}

var (
	_ ProbabilisticModel = (*LogisticRegression)(nil)
	_ LinearModel        = (*LogisticRegression)(nil)
)

// NewLogisticRegression creates an unfitted model.
func NewLogisticRegression(params LogisticParams) *LogisticRegression {
	return &LogisticRegression{params: params}
}

// Kind implements Model.
func (m *LogisticRegression) Kind() Kind { return KindLogisticRegression }

// Classes implements Model.
func (m *LogisticRegression) Classes() []int { return append([]int(nil), m.classes...) }

// Clone implements Model.
func (m *LogisticRegression) Clone() Model { return NewLogisticRegression(m.params) }

// Params returns the hyperparameters.
func (m *LogisticRegression) Params() LogisticParams { return m.params }

// Fit implements Model.
func (m *LogisticRegression) Fit(X *features.Matrix, y []int) error {
	if err := m.params.validate(); err != nil {
		return err
	}
	if err := checkTrainingData(X, y); err != nil {
		return err
	}

	classes, encoded := encodeLabels(y)
	_, p := X.Dims()
	k := len(classes)
	stride := p + 1

	theta := make([]float64, k*stride)
	if k > 1 {
		var err error
		theta, err = minimizeLBFGS(softmaxLoss(X, encoded, k, m.params.C), theta, m.params.MaxIter, m.params.Tol)
		if err != nil {
			return err
		}
	}

	weights := mat.NewDense(k, p, nil)
	intercepts := make([]float64, k)
	for c := 0; c < k; c++ {
		weights.SetRow(c, theta[c*stride:c*stride+p])
		intercepts[c] = theta[c*stride+p]
	}

	m.classes = classes
	m.nFeatures = p
	m.weights = weights
	m.intercepts = intercepts
	return nil
}

// softmaxLoss returns the penalized cross-entropy over parameters laid out
// as one block of p weights plus an intercept per class.
func softmaxLoss(X *features.Matrix, y []int, k int, c float64) objective {
	n, p := X.Dims()
	stride := p + 1
	z := make([]float64, k)

	return func(theta, grad []float64) float64 {
		for i := range grad {
			grad[i] = 0
		}

		f := 0.0
		for cls := 0; cls < k; cls++ {
			w := theta[cls*stride : cls*stride+p]
			f += 0.5 * floats.Dot(w, w)
			copy(grad[cls*stride:cls*stride+p], w)
		}

		for i := 0; i < n; i++ {
			idx, vals := X.Row(i)
			for cls := 0; cls < k; cls++ {
				off := cls * stride
				s := theta[off+p]
				for t, j := range idx {
					s += theta[off+j] * vals[t]
				}
				z[cls] = s
			}

			lse := floats.LogSumExp(z)
			f += c * (lse - z[y[i]])

			for cls := 0; cls < k; cls++ {
				d := math.Exp(z[cls] - lse)
				if cls == y[i] {
					d--
				}
				d *= c
				off := cls * stride
				grad[off+p] += d
				for t, j := range idx {
					grad[off+j] += d * vals[t]
				}
			}
		}
		return f
	}
}

func (m *LogisticRegression) scores(X *features.Matrix) (*mat.Dense, error) {
	if err := checkInput(m.Kind(), m.weights != nil, m.nFeatures, X); err != nil {
		return nil, err
	}
	return linearScores(X, m.weights, m.intercepts), nil
}

// Predict implements Model.
func (m *LogisticRegression) Predict(X *features.Matrix) ([]int, error) {
	s, err := m.scores(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(s, m.classes), nil
}

// PredictProba implements ProbabilisticModel.
func (m *LogisticRegression) PredictProba(X *features.Matrix) (*mat.Dense, error) {
	s, err := m.scores(X)
	if err != nil {
		return nil, err
	}
	rows, _ := s.Dims()
	for i := 0; i < rows; i++ {
		softmaxInPlace(s.RawRowView(i))
	}
	return s, nil
}

// Coefficients implements LinearModel.
func (m *LogisticRegression) Coefficients() (*mat.Dense, error) {
	if m.weights == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return mat.DenseCopyOf(m.weights), nil
}

// linearScores computes X*W^T + b for sparse X.
func linearScores(X *features.Matrix, weights *mat.Dense, intercepts []float64) *mat.Dense {
	n, _ := X.Dims()
	if n == 0 {
		return &mat.Dense{}
	}
	k := len(intercepts)
	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for c := 0; c < k; c++ {
			row[c] = X.RowDot(i, weights.RawRowView(c)) + intercepts[c]
		}
	}
	return out
}

type linearState struct {
	Classes    []int       `json:"classes"`
	NFeatures  int         `json:"n_features"`
	Weights    [][]float64 `json:"weights"`
	Intercepts []float64   `json:"intercepts"`
}

func (s linearState) restore() (*mat.Dense, error) {
	if len(s.Classes) == 0 || len(s.Intercepts) != len(s.Classes) || len(s.Weights) != len(s.Classes) {
		return nil, errors.ValidationError("linear model state is inconsistent")
	}
	return fromRows(s.Weights, s.NFeatures)
}

// MarshalJSON implements json.Marshaler.
func (m *LogisticRegression) MarshalJSON() ([]byte, error) {
	if m.weights == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return json.Marshal(struct {
		Params LogisticParams `json:"params"`
		linearState
	}{m.params, linearState{m.classes, m.nFeatures, denseRows(m.weights), m.intercepts}})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *LogisticRegression) UnmarshalJSON(data []byte) error {
	var state struct {
		Params LogisticParams `json:"params"`
		linearState
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	weights, err := state.restore()
	if err != nil {
		return err
	}
	*m = LogisticRegression{
		params:     state.Params,
		classes:    state.Classes,
		nFeatures:  state.NFeatures,
		weights:    weights,
		intercepts: state.Intercepts,
	}
	return nil
}
