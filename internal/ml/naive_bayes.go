package ml

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// NaiveBayesParams configures multinomial naive Bayes.
type NaiveBayesParams struct {
	// Alpha is the additive smoothing parameter.
	Alpha float64 `json:"alpha"`
}

// DefaultNaiveBayesParams returns the standard settings.
func DefaultNaiveBayesParams() NaiveBayesParams {
	return NaiveBayesParams{Alpha: 1.0}
}

const minAlpha = 1e-10

// NaiveBayes is a multinomial naive Bayes classifier. Feature values must be
// non-negative (counts or TF-IDF weights).
type NaiveBayes struct {
	params         NaiveBayesParams
	classes        []int
	nFeatures      int
	classLogPrior  []float64
	featureLogProb *mat.Dense // classes x features
}

var _ ProbabilisticModel = (*NaiveBayes)(nil)

// NewNaiveBayes creates an unfitted model.
func NewNaiveBayes(params NaiveBayesParams) *NaiveBayes {
	return &NaiveBayes{params: params}
}

// Kind implements Model.
func (m *NaiveBayes) Kind() Kind { return KindNaiveBayes }

// Classes implements Model.
func (m *NaiveBayes) Classes() []int { return append([]int(nil), m.classes...) }

// Clone implements Model.
func (m *NaiveBayes) Clone() Model { return NewNaiveBayes(m.params) }

// Params returns the hyperparameters.
func (m *NaiveBayes) Params() NaiveBayesParams { return m.params }

// Fit implements Model.
func (m *NaiveBayes) Fit(X *features.Matrix, y []int) error {
	if m.params.Alpha < 0 {
		return errors.ValidationError("naive Bayes alpha must not be negative")
	}
	if err := checkTrainingData(X, y); err != nil {
		return err
	}
	if X.MinValue() < 0 {
		return errors.ValidationError("naive Bayes requires non-negative feature values")
	}

	classes, encoded := encodeLabels(y)
	n, p := X.Dims()
	k := len(classes)
	alpha := math.Max(m.params.Alpha, minAlpha)

	counts := mat.NewDense(k, p, nil)
	classCount := make([]float64, k)
	for i := 0; i < n; i++ {
		c := encoded[i]
		classCount[c]++
		row := counts.RawRowView(c)
		idx, vals := X.Row(i)
		for t, j := range idx {
			row[j] += vals[t]
		}
	}

	logProb := mat.NewDense(k, p, nil)
	prior := make([]float64, k)
	for c := 0; c < k; c++ {
		row := counts.RawRowView(c)
		denom := math.Log(floats.Sum(row) + alpha*float64(p))
		out := logProb.RawRowView(c)
		for j, v := range row {
			out[j] = math.Log(v+alpha) - denom
		}
		prior[c] = math.Log(classCount[c] / float64(n))
	}

	m.classes = classes
	m.nFeatures = p
	m.classLogPrior = prior
	m.featureLogProb = logProb
	return nil
}

// jointLogLikelihood returns log P(c) + sum_j x_j log P(j|c) per row and class.
func (m *NaiveBayes) jointLogLikelihood(X *features.Matrix) (*mat.Dense, error) {
	if err := checkInput(m.Kind(), m.featureLogProb != nil, m.nFeatures, X); err != nil {
		return nil, err
	}
	return linearScores(X, m.featureLogProb, m.classLogPrior), nil
}

// Predict implements Model.
func (m *NaiveBayes) Predict(X *features.Matrix) ([]int, error) {
	jll, err := m.jointLogLikelihood(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(jll, m.classes), nil
}

// PredictProba implements ProbabilisticModel.
func (m *NaiveBayes) PredictProba(X *features.Matrix) (*mat.Dense, error) {
	jll, err := m.jointLogLikelihood(X)
	if err != nil {
		return nil, err
	}
	rows, _ := jll.Dims()
	for i := 0; i < rows; i++ {
		softmaxInPlace(jll.RawRowView(i))
	}
	return jll, nil
}

type naiveBayesState struct {
	Params         NaiveBayesParams `json:"params"`
	Classes        []int            `json:"classes"`
	NFeatures      int              `json:"n_features"`
	ClassLogPrior  []float64        `json:"class_log_prior"`
	FeatureLogProb [][]float64      `json:"feature_log_prob"`
}

// MarshalJSON implements json.Marshaler.
func (m *NaiveBayes) MarshalJSON() ([]byte, error) {
	if m.featureLogProb == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return json.Marshal(naiveBayesState{
		Params:         m.params,
		Classes:        m.classes,
		NFeatures:      m.nFeatures,
		ClassLogPrior:  m.classLogPrior,
		FeatureLogProb: denseRows(m.featureLogProb),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *NaiveBayes) UnmarshalJSON(data []byte) error {
	var state naiveBayesState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if len(state.Classes) == 0 || len(state.ClassLogPrior) != len(state.Classes) ||
		len(state.FeatureLogProb) != len(state.Classes) {
		return errors.ValidationError("naive Bayes state is inconsistent")
	}
	logProb, err := fromRows(state.FeatureLogProb, state.NFeatures)
	if err != nil {
		return err
	}
	*m = NaiveBayes{
		params:         state.Params,
		classes:        state.Classes,
		nFeatures:      state.NFeatures,
		classLogPrior:  state.ClassLogPrior,
		featureLogProb: logProb,
	}
	return nil
}
