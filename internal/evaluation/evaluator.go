package evaluation

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/ricesearch/complaint-classifier/internal/dataset"
	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/ml"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
)

// Evaluator scores fitted models against labelled feature matrices.
// It only calls Predict and PredictProba; models are never refit.
type Evaluator struct {
	log   *logger.Logger
	names func(int) string
}

// NewEvaluator creates an evaluator that labels classes with their
// product category names.
func NewEvaluator(log *logger.Logger) *Evaluator {
	if log == nil {
		log = logger.Discard()
	}
	return &Evaluator{
		log:   log.WithComponent("evaluator"),
		names: dataset.CategoryName,
	}
}

// predict runs model on X after checking shapes.
func (e *Evaluator) predict(model ml.Model, X *features.Matrix, y []int) ([]int, error) {
	if model == nil {
		return nil, errors.ValidationError("model is nil")
	}
	if X == nil {
		return nil, errors.ValidationError("feature matrix is nil")
	}
	if len(y) == 0 {
		return nil, errors.ValidationError("cannot evaluate on an empty label set")
	}
	if rows, _ := X.Dims(); rows != len(y) {
		return nil, errors.ValidationError(fmt.Sprintf("feature matrix has %d rows but %d labels", rows, len(y)))
	}
	return model.Predict(X)
}

// EvaluateModel predicts X and scores the predictions against y.
func (e *Evaluator) EvaluateModel(model ml.Model, X *features.Matrix, y []int) (*Metrics, error) {
	pred, err := e.predict(model, X, y)
	if err != nil {
		return nil, err
	}
	m, err := Score(y, pred)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CompareModels evaluates every registered model and ranks them by
// weighted F1, best first. Ties keep registration order.
func (e *Evaluator) CompareModels(registry *ml.Registry, X *features.Matrix, y []int) ([]ComparisonRow, error) {
	rows, _, err := e.Compare(registry, X, y)
	return rows, err
}

// Compare is CompareModels that also returns the full metrics of each
// model, keyed by registry name. Every model predicts X exactly once.
func (e *Evaluator) Compare(registry *ml.Registry, X *features.Matrix, y []int) ([]ComparisonRow, map[string]*Metrics, error) {
	if registry == nil {
		return nil, nil, errors.ValidationError("registry is nil")
	}

	rows := make([]ComparisonRow, 0, registry.Len())
	metrics := make(map[string]*Metrics, registry.Len())
	for name, model := range registry.All() {
		start := time.Now()
		m, err := e.EvaluateModel(model, X, y)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluate %s: %w", name, err)
		}
		e.log.WithModel(name).Info("Evaluated model",
			"accuracy", m.Accuracy,
			"f1_weighted", m.F1Weighted,
			"duration", time.Since(start),
		)
		rows = append(rows, m.Row(name))
		metrics[name] = m
	}

	Rank(rows)
	return rows, metrics, nil
}

// Rank sorts rows by weighted F1, best first, keeping the order of ties.
func Rank(rows []ComparisonRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].F1Weighted > rows[j].F1Weighted
	})
}

// ClassificationReport predicts X and breaks the scores down per class.
func (e *Evaluator) ClassificationReport(model ml.Model, X *features.Matrix, y []int) (*ClassificationReport, error) {
	pred, err := e.predict(model, X, y)
	if err != nil {
		return nil, err
	}
	return e.buildClassificationReport(y, pred), nil
}

func (e *Evaluator) buildClassificationReport(y, pred []int) *ClassificationReport {
	s := countClasses(y, pred, unionLabels(y, pred))
	rep := &ClassificationReport{
		Classes:  make([]ClassScores, len(s.labels)),
		Accuracy: Accuracy(y, pred),
	}
	for j, label := range s.labels {
		p, r, f := s.perClass(j)
		rep.Classes[j] = ClassScores{
			Label:     label,
			Name:      e.names(label),
			Precision: p,
			Recall:    r,
			F1:        f,
			Support:   s.support[j],
		}
	}

	macro, weighted := s.averages()
	rep.MacroAvg = ClassScores{Label: -1, Name: "macro avg", Precision: macro[0], Recall: macro[1], F1: macro[2], Support: len(y)}
	rep.WeightedAvg = ClassScores{Label: -1, Name: "weighted avg", Precision: weighted[0], Recall: weighted[1], F1: weighted[2], Support: len(y)}
	return rep
}

// ConfusionMatrix predicts X and counts true against predicted labels.
// Rows and columns cover every product category plus any other label
// that occurs.
func (e *Evaluator) ConfusionMatrix(model ml.Model, X *features.Matrix, y []int) (*ConfusionMatrix, error) {
	pred, err := e.predict(model, X, y)
	if err != nil {
		return nil, err
	}
	return e.buildConfusionMatrix(y, pred), nil
}

func (e *Evaluator) buildConfusionMatrix(y, pred []int) *ConfusionMatrix {
	labels := append(dataset.Categories(), unionLabels(y, pred)...)
	slices.Sort(labels)
	labels = slices.Compact(labels)

	idx := make(map[int]int, len(labels))
	cm := &ConfusionMatrix{
		Labels: labels,
		Names:  make([]string, len(labels)),
		Counts: make([][]int, len(labels)),
	}
	for i, l := range labels {
		idx[l] = i
		cm.Names[i] = e.names(l)
		cm.Counts[i] = make([]int, len(labels))
	}
	for i := range y {
		cm.Counts[idx[y[i]]][idx[pred[i]]]++
	}
	return cm
}

// Diagnose produces the full report for one model. ROC curves are
// omitted for models without probability estimates.
func (e *Evaluator) Diagnose(name string, model ml.Model, X *features.Matrix, y []int, terms []string, topN int) (*ModelReport, error) {
	pred, err := e.predict(model, X, y)
	if err != nil {
		return nil, err
	}
	m, err := Score(y, pred)
	if err != nil {
		return nil, err
	}

	rep := &ModelReport{
		Model:          name,
		Kind:           model.Kind(),
		Metrics:        m,
		Classification: e.buildClassificationReport(y, pred),
		Confusion:      e.buildConfusionMatrix(y, pred),
	}

	if ml.SupportsProba(model) {
		curves, err := e.ROCCurves(model, X, y)
		if err != nil {
			return nil, err
		}
		rep.ROC = curves
		rep.ROCSupported = true
	}

	if terms != nil {
		fi, err := e.FeatureImportance(model, terms, topN)
		if err != nil {
			return nil, err
		}
		rep.Importance = fi
	}
	return rep, nil
}
