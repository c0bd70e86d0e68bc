// Package pipeline runs complaint classification end to end: normalize,
// vectorize, train, validate, compare and persist.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ricesearch/complaint-classifier/internal/bus"
	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/dataset"
	"github.com/ricesearch/complaint-classifier/internal/evaluation"
	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/ml"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
	"github.com/ricesearch/complaint-classifier/internal/store"
	"github.com/ricesearch/complaint-classifier/internal/trainer"
)

const eventSource = "pipeline"

// Options configures a Pipeline.
type Options struct {
	Config     *config.Config
	Normalizer dataset.TextNormalizer
	Store      store.BlobStore
	// Bus receives run events. Nil disables publishing.
	Bus    bus.Bus
	Logger *logger.Logger
}

// Pipeline owns a Trainer and an Evaluator and drives them through a full
// training run. A Pipeline is not safe for concurrent Run calls.
type Pipeline struct {
	cfg        *config.Config
	normalizer dataset.TextNormalizer
	store      store.BlobStore
	bus        bus.Bus
	log        *logger.Logger
	trainer    *trainer.Trainer
	evaluator  *evaluation.Evaluator

	mu      sync.Mutex
	bundles map[string]*trainer.Bundle
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, errors.ValidationError("pipeline config is required")
	}
	if opts.Normalizer == nil {
		return nil, errors.ValidationError("pipeline normalizer is required")
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	cfg := opts.Config
	return &Pipeline{
		cfg:        cfg,
		normalizer: opts.Normalizer,
		store:      opts.Store,
		bus:        opts.Bus,
		log:        opts.Logger.WithComponent("pipeline"),
		trainer: trainer.New(trainer.Options{
			Vectorizer: features.VectorizerParamsFromConfig(cfg.Features),
			Params:     trainer.ParamsFromConfig(cfg.Train),
			Store:      opts.Store,
			Logger:     opts.Logger,
		}),
		evaluator: evaluation.NewEvaluator(opts.Logger),
		bundles:   make(map[string]*trainer.Bundle),
	}, nil
}

// Trainer returns the pipeline's trainer.
func (p *Pipeline) Trainer() *trainer.Trainer {
	return p.trainer
}

// Evaluator returns the pipeline's evaluator.
func (p *Pipeline) Evaluator() *evaluation.Evaluator {
	return p.evaluator
}

// Result summarizes a training run.
type Result struct {
	RunID      string                         `json:"run_id"`
	Train      int                            `json:"train"`
	Test       int                            `json:"test"`
	Features   int                            `json:"features"`
	Models     []string                       `json:"models"`
	CV         map[string]*trainer.CVResult   `json:"cv,omitempty"`
	Comparison []evaluation.ComparisonRow     `json:"comparison"`
	Best       string                         `json:"best"`
	Saved      []string                       `json:"saved"`
	Reports    []string                       `json:"reports,omitempty"`
	Duration   time.Duration                  `json:"duration"`
	Metrics    map[string]*evaluation.Metrics `json:"metrics"`
}

// Run trains every configured model on records and evaluates it on the
// held-out split. Models are saved under their slug in the store
// directory; JSON reports are written when a report directory is set.
func (p *Pipeline) Run(ctx context.Context, records []dataset.RawRecord) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.log.WithRun(runID)

	res := &Result{
		RunID: runID,
		CV:    make(map[string]*trainer.CVResult),
	}

	processed, err := dataset.Preprocess(ctx, records, p.normalizer, p.cfg.Train.Workers)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	log.Info("Preprocessed records", "samples", len(processed))

	weighting := features.Weighting(p.cfg.Features.Vectorizer)
	split, err := p.trainer.PrepareFeatures(processed, p.cfg.Features.TestFraction, p.cfg.Features.Seed, weighting)
	if err != nil {
		return nil, fmt.Errorf("prepare features: %w", err)
	}
	vec := p.trainer.Vectorizer()
	res.Train, res.Test, res.Features = len(split.YTrain), len(split.YTest), vec.NumFeatures()
	p.publish(ctx, log, bus.TopicFeaturesPrepared, runID, bus.FeaturesPrepared{
		Train:       res.Train,
		Test:        res.Test,
		Features:    res.Features,
		Weighting:   string(weighting),
		Fingerprint: vec.Fingerprint(),
	})

	for _, key := range p.cfg.Train.ModelList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fitStart := time.Now()
		name, model, err := p.trainer.Train(key)
		if err != nil {
			return nil, err
		}
		res.Models = append(res.Models, name)
		p.publish(ctx, log, bus.TopicModelTrained, runID, bus.ModelTrained{
			Model:      name,
			Kind:       string(model.Kind()),
			Classes:    model.Classes(),
			DurationMs: time.Since(fitStart).Milliseconds(),
		})

		if p.cfg.Train.Folds > 0 {
			cv, err := p.trainer.CrossValidate(model, p.cfg.Train.Folds)
			if err != nil {
				return nil, fmt.Errorf("cross-validate %s: %w", name, err)
			}
			res.CV[name] = cv
			log.WithModel(name).Info("Cross-validated model", "mean", cv.Mean, "std", cv.Std)
			p.publish(ctx, log, bus.TopicModelCrossValidated, runID, bus.ModelCrossValidated{
				Model:  name,
				Mean:   cv.Mean,
				Std:    cv.Std,
				Scores: cv.Scores,
			})
		}
	}

	comparison, metrics, err := p.evaluator.Compare(p.trainer.Registry(), split.XTest, split.YTest)
	if err != nil {
		return nil, err
	}
	res.Comparison = comparison
	res.Metrics = metrics
	if len(comparison) > 0 {
		res.Best = comparison[0].Model
	}

	scores := make(map[string]float64, len(comparison))
	ranking := make([]string, len(comparison))
	for i, row := range comparison {
		ranking[i] = row.Model
		scores[row.Model] = row.F1Weighted
	}

	dir := p.cfg.Store.Dir
	for name, model := range p.trainer.Registry().All() {
		slug := trainer.Slug(name)
		if err := p.trainer.SaveModel(ctx, model, slug, dir); err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		res.Saved = append(res.Saved, slug)
		p.forget(slug)
		p.publish(ctx, log, bus.TopicModelSaved, runID, bus.ModelSaved{Model: name, Name: slug, Dir: dir})
	}

	if p.cfg.Report.Dir != "" {
		keys, err := p.writeReports(ctx, res)
		if err != nil {
			return nil, err
		}
		res.Reports = keys
	}

	res.Duration = time.Since(start)
	p.publish(ctx, log, bus.TopicEvaluationCompleted, runID, bus.EvaluationCompleted{
		Best:    res.Best,
		Ranking: ranking,
		Scores:  scores,
	})
	log.Info("Pipeline run complete",
		"models", len(res.Models),
		"best", res.Best,
		"duration", res.Duration,
	)
	return res, nil
}

// writeReports stores the comparison table and one diagnostic report per
// model in the report directory.
func (p *Pipeline) writeReports(ctx context.Context, res *Result) ([]string, error) {
	dir := p.cfg.Report.Dir
	split := p.trainer.Split()
	terms := p.trainer.Vectorizer().Terms()

	key, err := evaluation.SaveReport(ctx, p.store, dir, "comparison", res.Comparison)
	if err != nil {
		return nil, err
	}
	keys := []string{key}

	for name, model := range p.trainer.Registry().All() {
		rep, err := p.evaluator.Diagnose(name, model, split.XTest, split.YTest, terms, p.cfg.Report.TopN)
		if err != nil {
			return nil, fmt.Errorf("diagnose %s: %w", name, err)
		}
		key, err := evaluation.SaveReport(ctx, p.store, dir, trainer.Slug(name)+"_report", rep)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// publish sends an event when a bus is configured. Failures are logged
// and never abort the run.
func (p *Pipeline) publish(ctx context.Context, log *logger.Logger, topic, runID string, payload any) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, topic, bus.NewEvent(topic, eventSource, runID, payload)); err != nil {
		log.WithError(err).Warn("Failed to publish event", "topic", topic)
	}
}

// Prediction is the classification of one raw text.
type Prediction struct {
	Text          string             `json:"text"`
	Processed     string             `json:"processed"`
	Label         int                `json:"label"`
	Category      string             `json:"category"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

// bundle returns the saved model name, loading it from the store once.
func (p *Pipeline) bundle(ctx context.Context, name string) (*trainer.Bundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.bundles[name]; ok {
		return b, nil
	}
	b, err := p.trainer.LoadModel(ctx, name, p.cfg.Store.Dir)
	if err != nil {
		return nil, err
	}
	p.bundles[name] = b
	return b, nil
}

// forget drops a cached bundle after the model was saved again.
func (p *Pipeline) forget(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bundles, name)
}

// Classify normalizes raw texts and predicts them with the saved model
// name. Probabilities are included when the model supports them.
func (p *Pipeline) Classify(ctx context.Context, name string, texts []string) ([]Prediction, error) {
	if len(texts) == 0 {
		return nil, errors.ValidationError("no texts to classify")
	}
	b, err := p.bundle(ctx, name)
	if err != nil {
		return nil, err
	}

	processed := make([]string, len(texts))
	for i, t := range texts {
		processed[i] = p.normalizer.Normalize(t)
	}

	labels, err := b.Predict(processed)
	if err != nil {
		return nil, err
	}

	out := make([]Prediction, len(texts))
	for i := range texts {
		out[i] = Prediction{
			Text:      texts[i],
			Processed: processed[i],
			Label:     labels[i],
			Category:  dataset.CategoryName(labels[i]),
		}
	}

	if !ml.SupportsProba(b.Model) {
		return out, nil
	}
	proba, err := b.PredictProba(processed)
	if err != nil {
		return nil, err
	}
	classes := b.Model.Classes()
	for i := range out {
		out[i].Probabilities = make(map[string]float64, len(classes))
		for c, label := range classes {
			out[i].Probabilities[dataset.CategoryName(label)] = proba.At(i, c)
		}
	}
	return out, nil
}
