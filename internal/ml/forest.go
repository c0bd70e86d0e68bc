package ml

import (
	"encoding/json"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// ForestParams configures a random forest.
type ForestParams struct {
	NEstimators int `json:"n_estimators"`
	MaxDepth    int `json:"max_depth"`
	// MaxFeatures is the number of features tried per split; 0 means
	// floor(sqrt(features)).
	MaxFeatures int    `json:"max_features"`
	RandomState uint64 `json:"random_state"`
	// Workers bounds the number of trees fitted concurrently.
	Workers int `json:"-"`
}

// DefaultForestParams returns the standard settings.
func DefaultForestParams() ForestParams {
	return ForestParams{NEstimators: 100, MaxDepth: 20, RandomState: 42, Workers: 4}
}

// RandomForest is a bagged ensemble of gini classification trees. Each tree
// is grown on a bootstrap sample and tries a random subset of features at
// every split.
type RandomForest struct {
	params      ForestParams
	classes     []int
	nFeatures   int
	trees       []decisionTree
	importances []float64
}

var (
	_ ProbabilisticModel = (*RandomForest)(nil)
	_ ImportanceModel    = (*RandomForest)(nil)
)

// NewRandomForest creates an unfitted model.
func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{params: params}
}

// Kind implements Model.
func (m *RandomForest) Kind() Kind { return KindRandomForest }

// Classes implements Model.
func (m *RandomForest) Classes() []int { return append([]int(nil), m.classes...) }

// Clone implements Model.
func (m *RandomForest) Clone() Model { return NewRandomForest(m.params) }

// Params returns the hyperparameters.
func (m *RandomForest) Params() ForestParams { return m.params }

// Fit implements Model. Trees are fitted concurrently; every tree draws from
// its own generator seeded up front, so the result does not depend on
// scheduling.
func (m *RandomForest) Fit(X *features.Matrix, y []int) error {
	if m.params.NEstimators < 1 || m.params.MaxDepth < 1 || m.params.MaxFeatures < 0 {
		return errors.ValidationError("random forest needs n_estimators >= 1, max_depth >= 1 and max_features >= 0")
	}
	if err := checkTrainingData(X, y); err != nil {
		return err
	}

	classes, encoded := encodeLabels(y)
	n, p := X.Dims()
	k := len(classes)

	maxFeatures := m.params.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(p))))
	}

	rng := features.NewRand(m.params.RandomState)
	seeds := make([]uint64, m.params.NEstimators)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	trees := make([]decisionTree, len(seeds))
	perTree := make([][]float64, len(seeds))

	var g errgroup.Group
	g.SetLimit(max(1, m.params.Workers))
	for t := range seeds {
		g.Go(func() error {
			trng := features.NewRand(seeds[t])

			weights := make([]float64, n)
			for range n {
				weights[trng.IntN(n)]++
			}
			stats := make([]float64, n*k)
			samples := make([]int, 0, n)
			for s, w := range weights {
				if w > 0 {
					stats[s*k+encoded[s]] = w
					samples = append(samples, s)
				}
			}

			b := newTreeBuilder(X, stats, k, giniScorer{}, m.params.MaxDepth, maxFeatures, trng)
			b.grow(samples, 0)
			trees[t] = b.tree

			if len(b.tree.Nodes) > 1 {
				normalizeInPlace(b.gains)
				perTree[t] = b.gains
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.MLError("random forest fit failed", err)
	}

	importances := make([]float64, p)
	used := 0
	for _, imp := range perTree {
		if imp == nil {
			continue
		}
		for j, v := range imp {
			importances[j] += v
		}
		used++
	}
	if used > 0 {
		for j := range importances {
			importances[j] /= float64(used)
		}
		normalizeInPlace(importances)
	}

	m.classes = classes
	m.nFeatures = p
	m.trees = trees
	m.importances = importances
	return nil
}

// PredictProba implements ProbabilisticModel. It averages the class
// distributions of the leaves each row reaches.
func (m *RandomForest) PredictProba(X *features.Matrix) (*mat.Dense, error) {
	if err := checkInput(m.Kind(), m.trees != nil, m.nFeatures, X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	if n == 0 {
		return &mat.Dense{}, nil
	}

	out := mat.NewDense(n, len(m.classes), nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for t := range m.trees {
			floats.Add(row, m.trees[t].leafValue(X, i))
		}
		for c := range row {
			row[c] /= float64(len(m.trees))
		}
	}
	return out, nil
}

// Predict implements Model.
func (m *RandomForest) Predict(X *features.Matrix) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(proba, m.classes), nil
}

// FeatureImportances implements ImportanceModel: mean decrease in impurity,
// summing to one unless no tree split at all.
func (m *RandomForest) FeatureImportances() ([]float64, error) {
	if m.trees == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return append([]float64(nil), m.importances...), nil
}

type forestState struct {
	Params      ForestParams   `json:"params"`
	Classes     []int          `json:"classes"`
	NFeatures   int            `json:"n_features"`
	Trees       []decisionTree `json:"trees"`
	Importances []float64      `json:"importances"`
}

// MarshalJSON implements json.Marshaler.
func (m *RandomForest) MarshalJSON() ([]byte, error) {
	if m.trees == nil {
		return nil, errors.NotFittedError(string(m.Kind()))
	}
	return json.Marshal(forestState{m.params, m.classes, m.nFeatures, m.trees, m.importances})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *RandomForest) UnmarshalJSON(data []byte) error {
	var state forestState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if len(state.Classes) == 0 || len(state.Trees) == 0 || len(state.Importances) != state.NFeatures {
		return errors.ValidationError("random forest state is inconsistent")
	}
	for i := range state.Trees {
		if err := state.Trees[i].validate(state.NFeatures, len(state.Classes)); err != nil {
			return err
		}
	}
	*m = RandomForest{
		params:      state.Params,
		classes:     state.Classes,
		nFeatures:   state.NFeatures,
		trees:       state.Trees,
		importances: state.Importances,
	}
	return nil
}
