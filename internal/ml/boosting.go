package ml

import (
	"encoding/json"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// BoostingParams configures gradient boosted trees.
type BoostingParams struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Lambda         float64 `json:"lambda"`
	Gamma          float64 `json:"gamma"`
	MinChildWeight float64 `json:"min_child_weight"`
	// Workers bounds the number of per-class trees grown concurrently.
	Workers int `json:"-"`
}

// DefaultBoostingParams returns the standard settings.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{
		NEstimators:    100,
		MaxDepth:       6,
		LearningRate:   0.1,
		Lambda:         1,
		Gamma:          0,
		MinChildWeight: 1,
		Workers:        4,
	}
}

const minHessian = 1e-16

// GradientBoosting fits one regression tree per class and round on the
// gradient and hessian of the softmax cross-entropy.
type GradientBoosting struct {
	params      BoostingParams
	classes     []int
	nFeatures   int
	rounds      [][]decisionTree // round x class
	importances []float64
}

var (
	_ ProbabilisticModel = (*GradientBoosting)(nil)
	_ ImportanceModel    = (*GradientBoosting)(nil)
)

// NewGradientBoosting creates an unfitted model.
func NewGradientBoosting(params BoostingParams) *GradientBoosting {
	return &GradientBoosting{params: params}
}

// Kind implements Model.
func (m *GradientBoosting) Kind() Kind { return KindGradientBoosting }

// Classes implements Model.
func (m *GradientBoosting) Classes() []int { return append([]int(nil), m.classes...) }

// Clone implements Model.
func (m *GradientBoosting) Clone() Model { return NewGradientBoosting(m.params) }

// Params returns the hyperparameters.
func (m *GradientBoosting) Params() BoostingParams { return m.params }

// Fit implements Model.
func (m *GradientBoosting) Fit(X *features.Matrix, y []int) error {
	p := m.params
	if p.NEstimators < 1 || p.MaxDepth < 1 || p.LearningRate <= 0 || p.Lambda < 0 || p.Gamma < 0 || p.MinChildWeight < 0 {
		return errors.ValidationError("gradient boosting parameters out of range")
	}
	if err := checkTrainingData(X, y); err != nil {
		return err
	}

	classes, encoded := encodeLabels(y)
	n, nFeatures := X.Dims()
	k := len(classes)

	scorer := secondOrderScorer{
		lambda:         p.Lambda,
		gamma:          p.Gamma,
		minChildWeight: p.MinChildWeight,
		learningRate:   p.LearningRate,
	}

	gains := make([]float64, nFeatures)
	splits := make([]int, nFeatures)
	var rounds [][]decisionTree

	if k > 1 {
		margins := mat.NewDense(n, k, nil)
		proba := mat.NewDense(n, k, nil)
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}

		for r := 0; r < p.NEstimators; r++ {
			proba.Copy(margins)
			for i := 0; i < n; i++ {
				softmaxInPlace(proba.RawRowView(i))
			}

			trees := make([]decisionTree, k)
			builders := make([]*treeBuilder, k)

			var g errgroup.Group
			g.SetLimit(max(1, p.Workers))
			for c := 0; c < k; c++ {
				g.Go(func() error {
					stats := make([]float64, 2*n)
					for i := 0; i < n; i++ {
						pr := proba.At(i, c)
						grad := pr
						if encoded[i] == c {
							grad--
						}
						stats[2*i] = grad
						stats[2*i+1] = math.Max(2*pr*(1-pr), minHessian)
					}
					b := newTreeBuilder(X, stats, 2, scorer, p.MaxDepth, 0, nil)
					b.grow(all, 0)
					trees[c] = b.tree
					builders[c] = b
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return errors.MLError("gradient boosting fit failed", err)
			}

			for c, b := range builders {
				for j := range gains {
					gains[j] += b.gains[j]
					splits[j] += b.splits[j]
				}
				for i := 0; i < n; i++ {
					margins.Set(i, c, margins.At(i, c)+trees[c].leafValue(X, i)[0])
				}
			}
			rounds = append(rounds, trees)
		}
	}

	importances := make([]float64, nFeatures)
	for j := range importances {
		if splits[j] > 0 {
			importances[j] = gains[j] / float64(splits[j])
		}
	}
	normalizeInPlace(importances)

	m.classes = classes
	m.nFeatures = nFeatures
	m.rounds = rounds
	m.importances = importances
	return nil
}

func (m *GradientBoosting) margins(X *features.Matrix) (*mat.Dense, error) {
	if err := checkInput(m.Kind(), m.importances != nil, m.nFeatures, X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	if n == 0 {
		return &mat.Dense{}, nil
	}

	out := mat.NewDense(n, len(m.classes), nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for _, trees := range m.rounds {
			for c := range trees {
				row[c] += trees[c].leafValue(X, i)[0]
			}
		}
	}
	return out, nil
}

// Predict implements Model.
func (m *GradientBoosting) Predict(X *features.Matrix) ([]int, error) {
	s, err := m.margins(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(s, m.classes), nil
}

// PredictProba implements ProbabilisticModel.
func (m *GradientBoosting) PredictProba(X *features.Matrix) (*mat.Dense, error) {
	s, err := m.margins(X)
	if err != nil {
		return nil, err
	}
	rows, _ := s.Dims()
	for i := 0; i < rows; i++ {
		softmaxInPlace(s.RawRowView(i))
	}
	return s, nil
}

// FeatureImportances implements ImportanceModel: the average gain of the
// splits on each feature, normalized to sum to one.
func (m *GradientBoosting) FeatureImportances() ([]float64, error) {
	if m.importances == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return append([]float64(nil), m.importances...), nil
}

type boostingState struct {
	Params      BoostingParams   `json:"params"`
	Classes     []int            `json:"classes"`
	NFeatures   int              `json:"n_features"`
	Rounds      [][]decisionTree `json:"rounds"`
	Importances []float64        `json:"importances"`
}

// MarshalJSON implements json.Marshaler.
func (m *GradientBoosting) MarshalJSON() ([]byte, error) {
	if m.importances == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return json.Marshal(boostingState{m.params, m.classes, m.nFeatures, m.rounds, m.importances})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *GradientBoosting) UnmarshalJSON(data []byte) error {
	var state boostingState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if len(state.Classes) == 0 || len(state.Importances) != state.NFeatures {
		return errors.ValidationError("gradient boosting state is inconsistent")
	}
	for _, trees := range state.Rounds {
		if len(trees) != len(state.Classes) {
			return errors.ValidationError("gradient boosting round has wrong tree count")
		}
		for i := range trees {
			if err := trees[i].validate(state.NFeatures, 1); err != nil {
				return err
			}
		}
	}
	*m = GradientBoosting{
		params:      state.Params,
		classes:     state.Classes,
		nFeatures:   state.NFeatures,
		rounds:      state.Rounds,
		importances: state.Importances,
	}
	return nil
}
