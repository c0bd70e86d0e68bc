package features

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/hash"
)

// Weighting selects how term counts become feature values.
type Weighting string

const (
	// TFIDF weights counts by smoothed inverse document frequency and
	// L2-normalizes each row.
	TFIDF Weighting = "tfidf"
	// Count uses raw term counts.
	Count Weighting = "count"
)

// VectorizerParams configures a Vectorizer.
type VectorizerParams struct {
	Weighting   Weighting `json:"weighting"`
	MaxFeatures int       `json:"max_features"`
	NGramMin    int       `json:"ngram_min"`
	NGramMax    int       `json:"ngram_max"`
	// MinDF is the minimum number of training documents a term must occur in.
	MinDF int `json:"min_df"`
	// MaxDF is the maximum fraction of training documents a term may occur in.
	MaxDF float64 `json:"max_df"`
}

// DefaultVectorizerParams returns the standard settings.
func DefaultVectorizerParams() VectorizerParams {
	return VectorizerParams{
		Weighting:   TFIDF,
		MaxFeatures: 5000,
		NGramMin:    1,
		NGramMax:    2,
		MinDF:       2,
		MaxDF:       0.8,
	}
}

// VectorizerParamsFromConfig builds parameters from the features configuration.
func VectorizerParamsFromConfig(cfg config.FeaturesConfig) VectorizerParams {
	return VectorizerParams{
		Weighting:   Weighting(cfg.Vectorizer),
		MaxFeatures: cfg.MaxFeatures,
		NGramMin:    cfg.NGramMin,
		NGramMax:    cfg.NGramMax,
		MinDF:       cfg.MinDF,
		MaxDF:       cfg.MaxDF,
	}
}

// Validate checks the parameters.
func (p VectorizerParams) Validate() error {
	switch {
	case p.Weighting != TFIDF && p.Weighting != Count:
		return errors.ValidationError(fmt.Sprintf("unknown weighting: %q", p.Weighting))
	case p.MaxFeatures < 1:
		return errors.ValidationError("max features must be positive")
	case p.NGramMin < 1 || p.NGramMax < p.NGramMin:
		return errors.ValidationError(fmt.Sprintf("invalid ngram range (%d, %d)", p.NGramMin, p.NGramMax))
	case p.MinDF < 1:
		return errors.ValidationError("min df must be at least 1")
	case p.MaxDF <= 0 || p.MaxDF > 1:
		return errors.ValidationError("max df must be in (0, 1]")
	}
	return nil
}

// Vectorizer maps documents to sparse term vectors. It is fitted once on a
// training corpus; afterwards its vocabulary is frozen.
type Vectorizer struct {
	params     VectorizerParams
	terms      []string
	vocabulary map[string]int
	idf        []float64
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(params VectorizerParams) (*Vectorizer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Vectorizer{params: params}, nil
}

// Params returns the vectorizer settings.
func (v *Vectorizer) Params() VectorizerParams {
	return v.params
}

// IsFitted reports whether Fit has completed.
func (v *Vectorizer) IsFitted() bool {
	return v.vocabulary != nil
}

// Terms returns the vocabulary in column order.
func (v *Vectorizer) Terms() []string {
	return append([]string(nil), v.terms...)
}

// NumFeatures returns the vocabulary size.
func (v *Vectorizer) NumFeatures() int {
	return len(v.terms)
}

// Fingerprint identifies the fitted vocabulary.
func (v *Vectorizer) Fingerprint() string {
	return hash.Fingerprint(v.terms)
}

// Fit learns the vocabulary, and for TF-IDF the idf weights, from docs.
func (v *Vectorizer) Fit(docs []string) error {
	if v.IsFitted() {
		return errors.AlreadyFittedError("vectorizer")
	}
	if len(docs) == 0 {
		return errors.ValidationError("cannot fit vectorizer on an empty corpus")
	}

	n := len(docs)
	df := make(map[string]int)
	total := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range v.analyze(doc) {
			total[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	// Document-frequency bounds are clamped to the corpus size so that very
	// small corpora keep a vocabulary.
	minCount := min(v.params.MinDF, n)
	maxCount := max(v.params.MaxDF*float64(n), float64(minCount))

	kept := make([]string, 0, len(df))
	for term, count := range df {
		if count >= minCount && float64(count) <= maxCount {
			kept = append(kept, term)
		}
	}
	if len(kept) == 0 {
		return errors.ValidationError("empty vocabulary: no term satisfies the document frequency bounds")
	}

	sort.Slice(kept, func(a, b int) bool {
		if total[kept[a]] != total[kept[b]] {
			return total[kept[a]] > total[kept[b]]
		}
		return kept[a] < kept[b]
	})
	if len(kept) > v.params.MaxFeatures {
		kept = kept[:v.params.MaxFeatures]
	}
	sort.Strings(kept)

	v.terms = kept
	v.vocabulary = make(map[string]int, len(kept))
	for i, term := range kept {
		v.vocabulary[term] = i
	}

	if v.params.Weighting == TFIDF {
		v.idf = make([]float64, len(kept))
		for i, term := range kept {
			v.idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
		}
	}

	return nil
}

// Transform maps docs onto the fitted vocabulary. Terms outside the
// vocabulary are ignored.
func (v *Vectorizer) Transform(docs []string) (*Matrix, error) {
	if !v.IsFitted() {
		return nil, errors.NotFittedError("vectorizer")
	}

	rows := make([][]Entry, len(docs))
	for i, doc := range docs {
		counts := make(map[int]float64)
		for _, term := range v.analyze(doc) {
			if j, ok := v.vocabulary[term]; ok {
				counts[j]++
			}
		}

		row := make([]Entry, 0, len(counts))
		for j, c := range counts {
			row = append(row, Entry{Col: j, Value: c})
		}
		sort.Slice(row, func(a, b int) bool { return row[a].Col < row[b].Col })

		if v.params.Weighting == TFIDF {
			norm := 0.0
			for k := range row {
				row[k].Value *= v.idf[row[k].Col]
				norm += row[k].Value * row[k].Value
			}
			if norm > 0 {
				norm = math.Sqrt(norm)
				for k := range row {
					row[k].Value /= norm
				}
			}
		}
		rows[i] = row
	}

	return NewMatrix(len(v.terms), rows), nil
}

// FitTransform fits on docs and transforms them.
func (v *Vectorizer) FitTransform(docs []string) (*Matrix, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.Transform(docs)
}

// analyze lowercases doc, extracts word tokens of at least two characters
// and expands them into the configured n-grams.
func (v *Vectorizer) analyze(doc string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	words := tokens[:0]
	for _, t := range tokens {
		if len([]rune(t)) >= 2 {
			words = append(words, t)
		}
	}

	var out []string
	for n := v.params.NGramMin; n <= v.params.NGramMax; n++ {
		for i := 0; i+n <= len(words); i++ {
			if n == 1 {
				out = append(out, words[i])
			} else {
				out = append(out, strings.Join(words[i:i+n], " "))
			}
		}
	}
	return out
}

type vectorizerState struct {
	Params VectorizerParams `json:"params"`
	Terms  []string         `json:"terms"`
	IDF    []float64        `json:"idf,omitempty"`
}

// MarshalJSON encodes a fitted vectorizer.
func (v *Vectorizer) MarshalJSON() ([]byte, error) {
	if !v.IsFitted() {
		return nil, errors.NotFittedError("vectorizer")
	}
	return json.Marshal(vectorizerState{Params: v.params, Terms: v.terms, IDF: v.idf})
}

// UnmarshalJSON restores a fitted vectorizer.
func (v *Vectorizer) UnmarshalJSON(data []byte) error {
	var state vectorizerState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if err := state.Params.Validate(); err != nil {
		return err
	}
	if len(state.Terms) == 0 {
		return errors.ValidationError("vectorizer state has no vocabulary")
	}
	if state.Params.Weighting == TFIDF && len(state.IDF) != len(state.Terms) {
		return errors.ValidationError(fmt.Sprintf("vectorizer state has %d idf weights for %d terms",
			len(state.IDF), len(state.Terms)))
	}

	v.params = state.Params
	v.terms = state.Terms
	v.idf = state.IDF
	v.vocabulary = make(map[string]int, len(state.Terms))
	for i, term := range state.Terms {
		v.vocabulary[term] = i
	}
	return nil
}
