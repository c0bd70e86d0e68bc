// Package text cleans complaint narratives into canonical token strings.
package text

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
)

// Normalizer turns raw narrative text into lowercase, alphabetic, stopword
// free, lemmatized token strings.
type Normalizer struct {
	stopwords  map[string]struct{}
	lemmatizer *Lemmatizer
}

// NewNormalizer creates a normalizer from parsed resources.
func NewNormalizer(res *Resources) *Normalizer {
	return &Normalizer{
		stopwords:  res.Stopwords,
		lemmatizer: NewLemmatizer(res.Lexicon, res.Exceptions),
	}
}

// Setup ensures the language resources exist locally, fetching missing ones
// from the configured providers, and builds a Normalizer from them. A failure
// here is fatal for the caller; calling Setup again retries the fetch.
func Setup(ctx context.Context, cfg config.TextConfig, log *logger.Logger) (*Normalizer, error) {
	providers, err := ProvidersFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if err := EnsureResources(ctx, cfg.ResourcesDir, providers, log); err != nil {
		return nil, err
	}

	res, err := LoadResources(cfg.ResourcesDir)
	if err != nil {
		return nil, err
	}

	return NewNormalizer(res), nil
}

// Normalize runs the full cleaning pipeline on text.
func (n *Normalizer) Normalize(text string) string {
	tokens := Tokenize(Clean(text))
	tokens = n.RemoveStopwords(tokens)
	tokens = n.Lemmatize(tokens)
	// A lemma may coincide with a stopword; dropping it here keeps
	// Normalize a fixed point.
	tokens = n.RemoveStopwords(tokens)
	return strings.Join(tokens, " ")
}

// NormalizeOptional normalizes a possibly missing value. Missing text
// normalizes to the empty string.
func (n *Normalizer) NormalizeOptional(text *string) string {
	if text == nil {
		return ""
	}
	return n.Normalize(*text)
}

// NormalizeAll normalizes every element of texts.
func (n *Normalizer) NormalizeAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = n.Normalize(t)
	}
	return out
}

// Clean folds compatibility characters, lowercases, drops everything but
// a-z and whitespace, and collapses whitespace runs.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	folded := strings.ToLower(norm.NFKC.String(text))
	filtered := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}, folded)

	return strings.Join(strings.Fields(filtered), " ")
}

// Tokenize splits cleaned text into words.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// RemoveStopwords drops tokens found in the stopword list.
func (n *Normalizer) RemoveStopwords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := n.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Lemmatize maps every token to its base form.
func (n *Normalizer) Lemmatize(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = n.lemmatizer.Lemma(t)
	}
	return out
}

// IsStopword reports whether word is in the stopword list.
func (n *Normalizer) IsStopword(word string) bool {
	_, ok := n.stopwords[word]
	return ok
}
