// Package ml provides the classifiers trained on complaint feature matrices.
package ml

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// Kind identifies a classifier algorithm.
type Kind string

// Supported classifier kinds.
const (
	KindLogisticRegression Kind = "logistic_regression"
	KindNaiveBayes         Kind = "naive_bayes"
	KindRandomForest       Kind = "random_forest"
	KindLinearSVM          Kind = "linear_svm"
	KindGradientBoosting   Kind = "gradient_boosting"
)

// Model is a classifier over sparse feature rows.
type Model interface {
	// Kind returns the algorithm identifier.
	Kind() Kind

	// Fit trains the model on X with integer labels y.
	Fit(X *features.Matrix, y []int) error

	// Predict returns one label per row of X.
	Predict(X *features.Matrix) ([]int, error)

	// Classes returns the labels seen during Fit in ascending order.
	Classes() []int

	// Clone returns an unfitted model with the same hyperparameters.
	Clone() Model
}

// ProbabilisticModel is implemented by models that estimate class
// probabilities. Columns follow Classes().
type ProbabilisticModel interface {
	Model
	PredictProba(X *features.Matrix) (*mat.Dense, error)
}

// LinearModel is implemented by models with one weight vector per class.
// Rows follow Classes(); columns are features.
type LinearModel interface {
	Model
	Coefficients() (*mat.Dense, error)
}

// ImportanceModel is implemented by tree ensembles.
type ImportanceModel interface {
	Model
	FeatureImportances() ([]float64, error)
}

// Capability describes which explanation a model supports.
type Capability string

const (
	CapabilityImportances  Capability = "importances"
	CapabilityCoefficients Capability = "coefficients"
	CapabilityNone         Capability = "none"
)

// CapabilityOf reports how a model can be explained. Tree ensembles take
// precedence over linear weights.
func CapabilityOf(m Model) Capability {
	switch m.(type) {
	case ImportanceModel:
		return CapabilityImportances
	case LinearModel:
		return CapabilityCoefficients
	default:
		return CapabilityNone
	}
}

// SupportsProba reports whether m implements PredictProba.
func SupportsProba(m Model) bool {
	_, ok := m.(ProbabilisticModel)
	return ok
}

// checkTrainingData validates the shapes handed to Fit.
func checkTrainingData(X *features.Matrix, y []int) error {
	if X == nil {
		return errors.ValidationError("feature matrix is nil")
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.ValidationError(fmt.Sprintf("cannot fit on a %dx%d matrix", rows, cols))
	}
	if rows != len(y) {
		return errors.ValidationError(fmt.Sprintf("feature matrix has %d rows but %d labels", rows, len(y)))
	}
	return nil
}

// checkInput validates a prediction input against a fitted model.
func checkInput(kind Kind, fitted bool, nFeatures int, X *features.Matrix) error {
	if !fitted {
		return errors.NotFittedError(string(kind))
	}
	if X == nil {
		return errors.ValidationError("feature matrix is nil")
	}
	if _, cols := X.Dims(); cols != nFeatures {
		return errors.ValidationError(fmt.Sprintf("%s expects %d features, got %d", kind, nFeatures, cols))
	}
	return nil
}

// encodeLabels returns the sorted distinct labels and y mapped onto their
// positions in that list.
func encodeLabels(y []int) (classes []int, encoded []int) {
	seen := make(map[int]struct{})
	for _, l := range y {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			classes = append(classes, l)
		}
	}
	sort.Ints(classes)

	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded = make([]int, len(y))
	for i, l := range y {
		encoded[i] = index[l]
	}
	return classes, encoded
}

// argmaxLabels maps the highest-scoring column of every row to its class.
// Ties resolve to the first column.
func argmaxLabels(scores *mat.Dense, classes []int) []int {
	rows, _ := scores.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		out[i] = classes[floats.MaxIdx(scores.RawRowView(i))]
	}
	return out
}

// softmaxInPlace turns a row of scores into probabilities.
func softmaxInPlace(row []float64) {
	lse := floats.LogSumExp(row)
	for k := range row {
		row[k] = math.Exp(row[k] - lse)
	}
}

// denseRows converts a dense matrix to nested slices for encoding.
func denseRows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), m.RawRowView(i)...)
	}
	return out
}

// fromRows builds a dense matrix from nested slices of equal length.
func fromRows(rows [][]float64, cols int) (*mat.Dense, error) {
	if len(rows) == 0 || cols == 0 {
		return nil, errors.ValidationError("empty weight matrix")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, errors.ValidationError(fmt.Sprintf("weight row %d has %d values, want %d", i, len(r), cols))
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}
