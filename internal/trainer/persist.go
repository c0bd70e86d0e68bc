package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/ml"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// Bundle is a model loaded together with the vectorizer it was trained on.
type Bundle struct {
	Name       string
	Model      ml.Model
	Vectorizer *features.Vectorizer
}

// Predict classifies processed texts.
func (b *Bundle) Predict(texts []string) ([]int, error) {
	return predict(b.Vectorizer, b.Model, texts)
}

// PredictProba returns class probabilities for processed texts.
func (b *Bundle) PredictProba(texts []string) (*mat.Dense, error) {
	return predictProba(b.Vectorizer, b.Model, texts)
}

// ModelKey returns the blob key of a saved model.
func ModelKey(dir, name string) string {
	return path.Join(dir, name+"_model.json")
}

// VectorizerKey returns the blob key of a saved vectorizer.
func VectorizerKey(dir, name string) string {
	return path.Join(dir, name+"_vectorizer.json")
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return errors.ValidationError(fmt.Sprintf("invalid model name %q", name))
	}
	return nil
}

// SaveModel persists model and the trainer's vectorizer under dir.
func (t *Trainer) SaveModel(ctx context.Context, model ml.Model, name, dir string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if model == nil {
		return errors.ValidationError("model is nil")
	}
	if t.vectorizer == nil {
		return errors.NotFittedError("vectorizer")
	}

	modelData, err := ml.Marshal(model)
	if err != nil {
		return err
	}
	vecData, err := json.Marshal(t.vectorizer)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to encode vectorizer", err)
	}

	if err := t.store.Put(ctx, ModelKey(dir, name), modelData); err != nil {
		return err
	}
	if err := t.store.Put(ctx, VectorizerKey(dir, name), vecData); err != nil {
		return err
	}

	t.log.WithModel(name).Info("Saved model", "dir", dir, "kind", model.Kind())
	return nil
}

// LoadModel restores a model and its vectorizer saved with SaveModel.
func (t *Trainer) LoadModel(ctx context.Context, name, dir string) (*Bundle, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	modelData, err := t.store.Get(ctx, ModelKey(dir, name))
	if err != nil {
		return nil, err
	}
	model, err := ml.Unmarshal(modelData)
	if err != nil {
		return nil, err
	}

	vecData, err := t.store.Get(ctx, VectorizerKey(dir, name))
	if err != nil {
		return nil, err
	}
	vec := &features.Vectorizer{}
	if err := json.Unmarshal(vecData, vec); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "failed to decode vectorizer", err)
	}

	t.log.WithModel(name).Debug("Loaded model", "dir", dir, "kind", model.Kind())
	return &Bundle{Name: name, Model: model, Vectorizer: vec}, nil
}

// SavedModels lists the names of the models saved under dir.
func (t *Trainer) SavedModels(ctx context.Context, dir string) ([]string, error) {
	keys, err := t.store.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, key := range keys {
		base := path.Base(key)
		if name, ok := strings.CutSuffix(base, "_model.json"); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
