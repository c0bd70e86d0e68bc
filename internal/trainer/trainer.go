// Package trainer turns processed complaints into fitted classifiers.
package trainer

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ricesearch/complaint-classifier/internal/dataset"
	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/ml"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
	"github.com/ricesearch/complaint-classifier/internal/store"
)

// Split is the train/test partition produced by PrepareFeatures.
type Split struct {
	// Indices into the records passed to PrepareFeatures, ascending.
	TrainIndex []int
	TestIndex  []int

	XTrain *features.Matrix
	XTest  *features.Matrix
	YTrain []int
	YTest  []int
}

// Options configures a Trainer.
type Options struct {
	Vectorizer features.VectorizerParams
	Params     Params
	Store      store.BlobStore
	Logger     *logger.Logger
}

// Trainer prepares features and fits, validates and persists models.
// A Trainer is not safe for concurrent use.
type Trainer struct {
	vecParams  features.VectorizerParams
	params     Params
	store      store.BlobStore
	log        *logger.Logger
	registry   *ml.Registry
	vectorizer *features.Vectorizer
	split      *Split
}

// New creates a Trainer. Zero options fall back to defaults and an
// in-memory store.
func New(opts Options) *Trainer {
	if opts.Vectorizer == (features.VectorizerParams{}) {
		opts.Vectorizer = features.DefaultVectorizerParams()
	}
	if opts.Params == (Params{}) {
		opts.Params = DefaultParams()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Trainer{
		vecParams: opts.Vectorizer,
		params:    opts.Params,
		store:     opts.Store,
		log:       opts.Logger.WithComponent("trainer"),
		registry:  ml.NewRegistry(),
	}
}

// Registry returns the trained models.
func (t *Trainer) Registry() *ml.Registry {
	return t.registry
}

// Vectorizer returns the fitted vectorizer, or nil before PrepareFeatures.
func (t *Trainer) Vectorizer() *features.Vectorizer {
	return t.vectorizer
}

// Split returns the current train/test partition, or nil before
// PrepareFeatures.
func (t *Trainer) Split() *Split {
	return t.split
}

// PrepareFeatures splits records stratified by category and fits a fresh
// vectorizer of the given weighting on the training text only. Preparing
// again replaces the split and vectorizer and clears the registry, since
// models fitted on the previous vocabulary no longer match.
func (t *Trainer) PrepareFeatures(records []dataset.ProcessedRecord, testFraction float64, seed uint64, weighting features.Weighting) (*Split, error) {
	if len(records) == 0 {
		return nil, errors.ValidationError("no records to prepare")
	}

	labels := dataset.Labels(records)
	trainIdx, testIdx, err := features.StratifiedSplit(labels, testFraction, seed)
	if err != nil {
		return nil, err
	}

	params := t.vecParams
	if weighting != "" {
		params.Weighting = weighting
	}
	vec, err := features.NewVectorizer(params)
	if err != nil {
		return nil, err
	}

	texts := dataset.ProcessedTexts(records)
	xTrain, err := vec.FitTransform(pick(texts, trainIdx))
	if err != nil {
		return nil, err
	}
	xTest, err := vec.Transform(pick(texts, testIdx))
	if err != nil {
		return nil, err
	}

	split := &Split{
		TrainIndex: trainIdx,
		TestIndex:  testIdx,
		XTrain:     xTrain,
		XTest:      xTest,
		YTrain:     pick(labels, trainIdx),
		YTest:      pick(labels, testIdx),
	}

	t.vectorizer = vec
	t.split = split
	t.registry = ml.NewRegistry()

	t.log.Info("Prepared features",
		"train", len(trainIdx),
		"test", len(testIdx),
		"features", vec.NumFeatures(),
		"weighting", params.Weighting,
	)
	return split, nil
}

func pick[T any](values []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// fit trains m on the training split and registers it under name.
func (t *Trainer) fit(name string, m ml.Model) (ml.Model, error) {
	if t.split == nil {
		return nil, errors.NotFittedError("features")
	}

	start := time.Now()
	if err := m.Fit(t.split.XTrain, t.split.YTrain); err != nil {
		return nil, err
	}
	t.registry.Register(name, m)

	rows, cols := t.split.XTrain.Dims()
	t.log.WithModel(name).Info("Trained model",
		"samples", rows,
		"features", cols,
		"classes", len(m.Classes()),
		"duration", time.Since(start).String(),
	)
	return m, nil
}

// TrainLogisticRegression fits a multinomial logistic regression.
func (t *Trainer) TrainLogisticRegression(params ml.LogisticParams) (ml.Model, error) {
	return t.fit(NameLogisticRegression, ml.NewLogisticRegression(params))
}

// TrainNaiveBayes fits a multinomial naive Bayes classifier.
func (t *Trainer) TrainNaiveBayes(params ml.NaiveBayesParams) (ml.Model, error) {
	return t.fit(NameNaiveBayes, ml.NewNaiveBayes(params))
}

// TrainRandomForest fits a random forest.
func (t *Trainer) TrainRandomForest(params ml.ForestParams) (ml.Model, error) {
	return t.fit(NameRandomForest, ml.NewRandomForest(params))
}

// TrainSVM fits a one-vs-rest linear SVM.
func (t *Trainer) TrainSVM(params ml.SVMParams) (ml.Model, error) {
	return t.fit(NameLinearSVM, ml.NewLinearSVM(params))
}

// TrainGradientBoosting fits gradient boosted trees.
func (t *Trainer) TrainGradientBoosting(params ml.BoostingParams) (ml.Model, error) {
	return t.fit(NameGradientBoosting, ml.NewGradientBoosting(params))
}

// Train fits the algorithm selected by key with the trainer's parameters
// and returns its display name.
func (t *Trainer) Train(key string) (string, ml.Model, error) {
	name, err := DisplayName(key)
	if err != nil {
		return "", nil, err
	}

	var m ml.Model
	switch key {
	case KeyLogisticRegression:
		m, err = t.TrainLogisticRegression(t.params.Logistic)
	case KeyNaiveBayes:
		m, err = t.TrainNaiveBayes(t.params.NaiveBayes)
	case KeyRandomForest:
		m, err = t.TrainRandomForest(t.params.Forest)
	case KeyLinearSVM:
		m, err = t.TrainSVM(t.params.SVM)
	case KeyGradientBoosting:
		m, err = t.TrainGradientBoosting(t.params.Boosting)
	}
	if err != nil {
		return "", nil, fmt.Errorf("training %s: %w", name, err)
	}
	return name, m, nil
}

// TrainAll fits all five algorithms in order.
func (t *Trainer) TrainAll() error {
	for _, key := range AllKeys {
		if _, _, err := t.Train(key); err != nil {
			return err
		}
	}
	return nil
}

// CVResult summarizes a cross-validation run.
type CVResult struct {
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
	Scores []float64 `json:"scores"`
}

// CrossValidate scores model by stratified k-fold accuracy on the training
// split. Each fold fits a fresh clone, so model itself is never refitted.
func (t *Trainer) CrossValidate(model ml.Model, folds int) (*CVResult, error) {
	if t.split == nil {
		return nil, errors.NotFittedError("features")
	}
	if model == nil {
		return nil, errors.ValidationError("model is nil")
	}

	splits, err := features.StratifiedKFold(t.split.YTrain, folds)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(splits))
	for i, fold := range splits {
		m := model.Clone()
		if err := m.Fit(t.split.XTrain.SelectRows(fold.Train), pick(t.split.YTrain, fold.Train)); err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}
		pred, err := m.Predict(t.split.XTrain.SelectRows(fold.Test))
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}
		scores[i] = accuracy(pick(t.split.YTrain, fold.Test), pred)
	}

	mean, std := stat.PopMeanStdDev(scores, nil)
	return &CVResult{Mean: mean, Std: std, Scores: scores}, nil
}

func accuracy(y, pred []int) float64 {
	if len(y) == 0 {
		return 0
	}
	correct := 0
	for i := range y {
		if y[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// Predict classifies processed texts with model.
func (t *Trainer) Predict(model ml.Model, texts []string) ([]int, error) {
	if t.vectorizer == nil {
		return nil, errors.NotFittedError("vectorizer")
	}
	return predict(t.vectorizer, model, texts)
}

// PredictProba returns class probabilities for processed texts. Columns
// follow model.Classes().
func (t *Trainer) PredictProba(model ml.Model, texts []string) (*mat.Dense, error) {
	if t.vectorizer == nil {
		return nil, errors.NotFittedError("vectorizer")
	}
	return predictProba(t.vectorizer, model, texts)
}

func predict(vec *features.Vectorizer, model ml.Model, texts []string) ([]int, error) {
	if model == nil {
		return nil, errors.ValidationError("model is nil")
	}
	X, err := vec.Transform(texts)
	if err != nil {
		return nil, err
	}
	return model.Predict(X)
}

func predictProba(vec *features.Vectorizer, model ml.Model, texts []string) (*mat.Dense, error) {
	if model == nil {
		return nil, errors.ValidationError("model is nil")
	}
	pm, ok := model.(ml.ProbabilisticModel)
	if !ok {
		return nil, errors.UnsupportedError("predict_proba", string(model.Kind()))
	}
	X, err := vec.Transform(texts)
	if err != nil {
		return nil, err
	}
	return pm.PredictProba(X)
}
