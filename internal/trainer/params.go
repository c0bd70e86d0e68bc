package trainer

import (
	"fmt"
	"strings"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/ml"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// Display names under which trained models are registered.
const (
	NameLogisticRegression = "Logistic Regression"
	NameNaiveBayes         = "Naive Bayes"
	NameRandomForest       = "Random Forest"
	NameLinearSVM          = "Linear SVM"
	NameGradientBoosting   = "Gradient Boosting"
)

// Config keys selecting an algorithm, in TrainAll order.
const (
	KeyLogisticRegression = "logreg"
	KeyNaiveBayes         = "naive_bayes"
	KeyRandomForest       = "random_forest"
	KeyLinearSVM          = "svm"
	KeyGradientBoosting   = "boosting"
)

// AllKeys lists every algorithm key in training order.
var AllKeys = []string{
	KeyLogisticRegression,
	KeyNaiveBayes,
	KeyRandomForest,
	KeyLinearSVM,
	KeyGradientBoosting,
}

var displayNames = map[string]string{
	KeyLogisticRegression: NameLogisticRegression,
	KeyNaiveBayes:         NameNaiveBayes,
	KeyRandomForest:       NameRandomForest,
	KeyLinearSVM:          NameLinearSVM,
	KeyGradientBoosting:   NameGradientBoosting,
}

// DisplayName returns the registry name for an algorithm key.
func DisplayName(key string) (string, error) {
	name, ok := displayNames[key]
	if !ok {
		return "", errors.ValidationError(fmt.Sprintf("unknown model: %s", key))
	}
	return name, nil
}

var kinds = map[string]ml.Kind{
	KeyLogisticRegression: ml.KindLogisticRegression,
	KeyNaiveBayes:         ml.KindNaiveBayes,
	KeyRandomForest:       ml.KindRandomForest,
	KeyLinearSVM:          ml.KindLinearSVM,
	KeyGradientBoosting:   ml.KindGradientBoosting,
}

// KindOf returns the classifier kind an algorithm key trains.
func KindOf(key string) (ml.Kind, error) {
	kind, ok := kinds[key]
	if !ok {
		return "", errors.ValidationError(fmt.Sprintf("unknown model: %s", key))
	}
	return kind, nil
}

// Slug turns a display name into the file-safe name used for persisted
// blobs, e.g. "Linear SVM" -> "linear_svm".
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Params bundles the hyperparameters of every algorithm.
type Params struct {
	Logistic   ml.LogisticParams
	NaiveBayes ml.NaiveBayesParams
	Forest     ml.ForestParams
	SVM        ml.SVMParams
	Boosting   ml.BoostingParams
}

// DefaultParams returns the standard hyperparameters.
func DefaultParams() Params {
	return Params{
		Logistic:   ml.DefaultLogisticParams(),
		NaiveBayes: ml.DefaultNaiveBayesParams(),
		Forest:     ml.DefaultForestParams(),
		SVM:        ml.DefaultSVMParams(),
		Boosting:   ml.DefaultBoostingParams(),
	}
}

// ParamsFromConfig overlays the configured hyperparameters on the defaults.
func ParamsFromConfig(cfg config.TrainConfig) Params {
	p := DefaultParams()

	p.Logistic.C = cfg.LogRegC
	p.Logistic.MaxIter = cfg.LogRegMaxIter

	p.NaiveBayes.Alpha = cfg.NaiveBayesAlpha

	p.Forest.NEstimators = cfg.ForestEstimators
	p.Forest.MaxDepth = cfg.ForestMaxDepth
	p.Forest.RandomState = cfg.RandomState
	p.Forest.Workers = cfg.Workers

	p.SVM.C = cfg.SVMC
	p.SVM.MaxIter = cfg.SVMMaxIter
	p.SVM.Workers = cfg.Workers

	p.Boosting.NEstimators = cfg.BoostingEstimators
	p.Boosting.MaxDepth = cfg.BoostingMaxDepth
	p.Boosting.LearningRate = cfg.BoostingLearningRate
	p.Boosting.Workers = cfg.Workers

	return p
}
