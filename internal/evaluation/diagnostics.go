package evaluation

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/ml"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// ROCCurves computes one-vs-rest ROC curves from the model's class
// probabilities, one per class the model knows.
func (e *Evaluator) ROCCurves(model ml.Model, X *features.Matrix, y []int) ([]ROCCurve, error) {
	if model == nil {
		return nil, errors.ValidationError("model is nil")
	}
	pm, ok := model.(ml.ProbabilisticModel)
	if !ok {
		return nil, errors.UnsupportedError("roc_curves", string(model.Kind()))
	}
	if X == nil || len(y) == 0 {
		return nil, errors.ValidationError("cannot compute ROC curves on an empty set")
	}
	if rows, _ := X.Dims(); rows != len(y) {
		return nil, errors.ValidationError(fmt.Sprintf("feature matrix has %d rows but %d labels", rows, len(y)))
	}

	proba, err := pm.PredictProba(X)
	if err != nil {
		return nil, err
	}

	classes := model.Classes()
	curves := make([]ROCCurve, len(classes))
	for c, label := range classes {
		curves[c] = rocCurve(mat.Col(nil, c, proba), y, label)
		curves[c].Name = e.names(label)
	}
	return curves, nil
}

// rocCurve treats label as the positive class.
func rocCurve(scores []float64, y []int, label int) ROCCurve {
	curve := ROCCurve{Label: label}

	positives := make([]bool, len(y))
	var nPos int
	for i := range y {
		positives[i] = y[i] == label
		if positives[i] {
			nPos++
		}
	}
	if nPos == 0 || nPos == len(y) {
		return curve
	}

	stat.SortWeightedLabeled(scores, positives, nil)
	tpr, fpr, thresh := stat.ROC(nil, scores, positives, nil)

	// The first point predicts nothing positive and carries a +Inf
	// threshold; store the smallest value above the top score instead so
	// the curve stays JSON encodable.
	if len(thresh) > 1 && math.IsInf(thresh[0], 1) {
		thresh[0] = math.Nextafter(thresh[1], math.Inf(1))
	}

	curve.TPR = tpr
	curve.FPR = fpr
	curve.Thresholds = thresh
	curve.AUC = integrate.Trapezoidal(fpr, tpr)
	curve.Defined = true
	return curve
}

// FeatureImportance ranks the terms a model relies on. Tree ensembles
// report their global importances; linear models report the topN terms
// of each class by absolute coefficient. Other models are reported as
// unsupported without an error. A topN of zero or less keeps every term.
func (e *Evaluator) FeatureImportance(model ml.Model, terms []string, topN int) (*FeatureImportance, error) {
	if model == nil {
		return nil, errors.ValidationError("model is nil")
	}

	capability := ml.CapabilityOf(model)
	fi := &FeatureImportance{Capability: capability}

	switch capability {
	case ml.CapabilityImportances:
		imp, err := model.(ml.ImportanceModel).FeatureImportances()
		if err != nil {
			return nil, err
		}
		if len(imp) != len(terms) {
			return nil, errors.ValidationError(fmt.Sprintf("model has %d features but %d terms were given", len(imp), len(terms)))
		}
		fi.Global = topTerms(terms, imp, topN, func(v float64) float64 { return v })

	case ml.CapabilityCoefficients:
		coef, err := model.(ml.LinearModel).Coefficients()
		if err != nil {
			return nil, err
		}
		rows, cols := coef.Dims()
		if cols != len(terms) {
			return nil, errors.ValidationError(fmt.Sprintf("model has %d features but %d terms were given", cols, len(terms)))
		}
		classes := model.Classes()
		for i := 0; i < rows && i < len(classes); i++ {
			fi.PerClass = append(fi.PerClass, ClassTerms{
				Label: classes[i],
				Name:  e.names(classes[i]),
				Terms: topTerms(terms, mat.Row(nil, i, coef), topN, math.Abs),
			})
		}

	default:
		return fi, nil
	}

	fi.Supported = true
	return fi, nil
}

// topTerms returns the n terms with the largest key(score), keeping the
// raw score. Equal keys keep feature order.
func topTerms(terms []string, scores []float64, n int, key func(float64) float64) []TermScore {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(key(scores[b]), key(scores[a]))
	})
	if n > 0 && n < len(order) {
		order = order[:n]
	}

	out := make([]TermScore, len(order))
	for i, j := range order {
		out[i] = TermScore{Term: terms[j], Score: scores[j]}
	}
	return out
}
