package evaluation

import "github.com/ricesearch/complaint-classifier/internal/ml"

// Metric names as reported by Metrics.AsMap.
const (
	MetricAccuracy          = "accuracy"
	MetricPrecisionMacro    = "precision_macro"
	MetricRecallMacro       = "recall_macro"
	MetricF1Macro           = "f1_macro"
	MetricPrecisionWeighted = "precision_weighted"
	MetricRecallWeighted    = "recall_weighted"
	MetricF1Weighted        = "f1_weighted"
)

// MetricNames lists every metric in report order.
var MetricNames = []string{
	MetricAccuracy,
	MetricPrecisionMacro,
	MetricRecallMacro,
	MetricF1Macro,
	MetricPrecisionWeighted,
	MetricRecallWeighted,
	MetricF1Weighted,
}

// Metrics contains the scores of one model on one labelled set.
type Metrics struct {
	Accuracy          float64 `json:"accuracy"`
	PrecisionMacro    float64 `json:"precision_macro"`
	RecallMacro       float64 `json:"recall_macro"`
	F1Macro           float64 `json:"f1_macro"`
	PrecisionWeighted float64 `json:"precision_weighted"`
	RecallWeighted    float64 `json:"recall_weighted"`
	F1Weighted        float64 `json:"f1_weighted"`
}

// AsMap returns the metrics keyed by name.
func (m Metrics) AsMap() map[string]float64 {
	return map[string]float64{
		MetricAccuracy:          m.Accuracy,
		MetricPrecisionMacro:    m.PrecisionMacro,
		MetricRecallMacro:       m.RecallMacro,
		MetricF1Macro:           m.F1Macro,
		MetricPrecisionWeighted: m.PrecisionWeighted,
		MetricRecallWeighted:    m.RecallWeighted,
		MetricF1Weighted:        m.F1Weighted,
	}
}

// Row returns the comparison line of a model with these metrics.
func (m Metrics) Row(model string) ComparisonRow {
	return ComparisonRow{
		Model:             model,
		Accuracy:          m.Accuracy,
		PrecisionWeighted: m.PrecisionWeighted,
		RecallWeighted:    m.RecallWeighted,
		F1Weighted:        m.F1Weighted,
	}
}

// ComparisonRow is one model's line in a comparison table.
type ComparisonRow struct {
	Model             string  `json:"model"`
	Accuracy          float64 `json:"accuracy"`
	PrecisionWeighted float64 `json:"precision_weighted"`
	RecallWeighted    float64 `json:"recall_weighted"`
	F1Weighted        float64 `json:"f1_weighted"`
}

// ClassScores holds precision, recall and F1 for one class or average.
type ClassScores struct {
	Label     int     `json:"label"`
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationReport breaks the scores down per class.
type ClassificationReport struct {
	Classes     []ClassScores `json:"classes"`
	Accuracy    float64       `json:"accuracy"`
	MacroAvg    ClassScores   `json:"macro_avg"`
	WeightedAvg ClassScores   `json:"weighted_avg"`
}

// ConfusionMatrix counts predictions per true label. Counts[i][j] is the
// number of samples with true label Labels[i] predicted as Labels[j].
type ConfusionMatrix struct {
	Labels []int    `json:"labels"`
	Names  []string `json:"names"`
	Counts [][]int  `json:"counts"`
}

// ROCCurve is the one-vs-rest ROC curve of one class.
type ROCCurve struct {
	Label      int       `json:"label"`
	Name       string    `json:"name"`
	FPR        []float64 `json:"fpr"`
	TPR        []float64 `json:"tpr"`
	Thresholds []float64 `json:"thresholds"`
	AUC        float64   `json:"auc"`
	// Defined is false when the class has no positive or no negative
	// sample; the curve is then empty and AUC is zero.
	Defined bool `json:"defined"`
}

// TermScore is one feature's score.
type TermScore struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// ClassTerms is the top-weighted features of one class.
type ClassTerms struct {
	Label int         `json:"label"`
	Name  string      `json:"name"`
	Terms []TermScore `json:"terms"`
}

// FeatureImportance ranks the features a model relies on. Tree ensembles
// fill Global; linear models fill PerClass; other models are unsupported.
type FeatureImportance struct {
	Capability ml.Capability `json:"capability"`
	Supported  bool          `json:"supported"`
	Global     []TermScore   `json:"global,omitempty"`
	PerClass   []ClassTerms  `json:"per_class,omitempty"`
}

// ModelReport gathers every diagnostic of one model.
type ModelReport struct {
	Model          string                `json:"model"`
	Kind           ml.Kind               `json:"kind"`
	Metrics        Metrics               `json:"metrics"`
	Classification *ClassificationReport `json:"classification"`
	Confusion      *ConfusionMatrix      `json:"confusion"`
	ROC            []ROCCurve            `json:"roc,omitempty"`
	ROCSupported   bool                  `json:"roc_supported"`
	Importance     *FeatureImportance    `json:"importance"`
}
