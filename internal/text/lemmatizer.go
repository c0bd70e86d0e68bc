package text

import "strings"

// nounRules are the WordNet noun detachment rules: an inflected suffix and
// the replacement that yields a candidate base form.
var nounRules = []struct {
	suffix string
	repl   string
}{
	{"s", ""},
	{"ses", "s"},
	{"ves", "f"},
	{"xes", "x"},
	{"zes", "z"},
	{"ches", "ch"},
	{"shes", "sh"},
	{"men", "man"},
	{"ies", "y"},
}

// Lemmatizer reduces nouns to their dictionary form.
//
// A word already in the lexicon is its own lemma. Otherwise the exception
// table is consulted, then every suffix rule whose candidate is in the
// lexicon; the shortest such candidate wins. Words nothing applies to are
// returned unchanged. Every lemma is therefore either a lexicon entry or an
// unchanged word, which makes Lemma idempotent.
type Lemmatizer struct {
	lexicon    map[string]struct{}
	exceptions map[string]string
}

// NewLemmatizer creates a lemmatizer. Exception targets are added to the
// lexicon so that they map onto themselves.
func NewLemmatizer(lexicon map[string]struct{}, exceptions map[string]string) *Lemmatizer {
	lex := make(map[string]struct{}, len(lexicon)+len(exceptions))
	for w := range lexicon {
		lex[w] = struct{}{}
	}
	exc := make(map[string]string, len(exceptions))
	for inflected, base := range exceptions {
		exc[inflected] = base
		lex[base] = struct{}{}
	}
	return &Lemmatizer{lexicon: lex, exceptions: exc}
}

// Lemma returns the base form of word.
func (l *Lemmatizer) Lemma(word string) string {
	if l.known(word) {
		return word
	}
	if base, ok := l.exceptions[word]; ok {
		return base
	}

	best := ""
	for _, r := range nounRules {
		if !strings.HasSuffix(word, r.suffix) {
			continue
		}
		candidate := word[:len(word)-len(r.suffix)] + r.repl
		if candidate == "" || !l.known(candidate) {
			continue
		}
		if best == "" || len(candidate) < len(best) {
			best = candidate
		}
	}
	if best != "" {
		return best
	}
	return word
}

func (l *Lemmatizer) known(word string) bool {
	_, ok := l.lexicon[word]
	return ok
}
