package text

import "testing"

func testLemmatizer() *Lemmatizer {
	lexicon := map[string]struct{}{
		"account": {}, "address": {}, "business": {}, "company": {},
		"box": {}, "church": {}, "dish": {}, "leaf": {}, "woman": {},
		"quiz": {}, "fee": {}, "bus": {},
	}
	exceptions := map[string]string{"children": "child", "feet": "foot"}
	return NewLemmatizer(lexicon, exceptions)
}

func TestLemmatizer_Lemma(t *testing.T) {
	l := testLemmatizer()

	tests := []struct {
		word string
		want string
	}{
		{"accounts", "account"},
		{"addresses", "address"},
		{"businesses", "business"},
		{"companies", "company"},
		{"boxes", "box"},
		{"churches", "church"},
		{"dishes", "dish"},
		{"leaves", "leaf"},
		{"women", "woman"},
		{"quizes", "quiz"},
		{"fees", "fee"},
		{"children", "child"},
		{"feet", "foot"},
		{"bus", "bus"},         // known words are kept
		{"called", "called"},   // no rule applies
		{"status", "status"},   // candidate "statu" unknown
		{"address", "address"}, // base form
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			if got := l.Lemma(tt.word); got != tt.want {
				t.Errorf("Lemma(%q) = %q, want %q", tt.word, got, tt.want)
			}
		})
	}
}

func TestLemmatizer_ExceptionTargetsAreKnown(t *testing.T) {
	l := testLemmatizer()

	// "child" is not in the lexicon but is an exception target.
	if got := l.Lemma("child"); got != "child" {
		t.Errorf("Lemma(child) = %q, want child", got)
	}
}

func TestLemmatizer_Idempotent(t *testing.T) {
	l := testLemmatizer()

	for _, w := range []string{"accounts", "addresses", "children", "unknowns", "leaves", "xs"} {
		once := l.Lemma(w)
		if twice := l.Lemma(once); twice != once {
			t.Errorf("Lemma not idempotent for %q: %q -> %q", w, once, twice)
		}
	}
}
