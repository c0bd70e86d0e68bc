package text

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()

	cfg := config.Default().Text
	cfg.ResourcesDir = t.TempDir()

	n, err := Setup(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return n
}

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"lowercases", "Debt COLLECTION", "debt collection"},
		{"drops digits and punctuation", "This is a SAMPLE text with numbers 123 and special chars!@#", "this is a sample text with numbers and special chars"},
		{"collapses whitespace", "  late \t\n fee  ", "late fee"},
		{"apostrophes join words", "don't call", "dont call"},
		{"fullwidth folds to ascii", "ＭＯＲＴＧＡＧＥ", "mortgage"},
		{"non latin letters removed", "crédit", "crdit"},
		{"only symbols", "$$$ 999 !!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_CollectorScenario(t *testing.T) {
	n := newTestNormalizer(t)

	got := n.Normalize("Collector called me daily about a debt")
	tokens := strings.Fields(got)

	for _, want := range []string{"collector", "called", "daily", "debt"} {
		if !slices.Contains(tokens, want) {
			t.Errorf("Normalize() = %q, missing token %q", got, want)
		}
	}
	for _, stop := range []string{"me", "about", "a"} {
		if slices.Contains(tokens, stop) {
			t.Errorf("Normalize() = %q, stopword %q not removed", got, stop)
		}
	}
}

func TestNormalize_Lemmatizes(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		input string
		want  string
	}{
		{"Late payments and fees", "late payment fee"},
		{"The companies sent letters", "company sent letter"},
		{"Two businesses, three addresses", "two business three address"},
		{"Children accounts", "child account"},
		{"Children's accounts", "childrens account"},
		{"Both wives filed disputes", "wife filed dispute"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := n.Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_MissingText(t *testing.T) {
	n := newTestNormalizer(t)

	if got := n.Normalize(""); got != "" {
		t.Errorf("Normalize(\"\") = %q, want empty", got)
	}
	if got := n.NormalizeOptional(nil); got != "" {
		t.Errorf("NormalizeOptional(nil) = %q, want empty", got)
	}

	text := "Mortgage servicer lost my payments"
	if got, want := n.NormalizeOptional(&text), n.Normalize(text); got != want {
		t.Errorf("NormalizeOptional(&text) = %q, want %q", got, want)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer(t)

	inputs := []string{
		"Collector called me daily about a debt",
		"Credit report has wrong balance",
		"I was charged $35.00 in LATE FEES on 03/12/2021!!",
		"The servicers' escrow analyses were wrong; mortgages, taxes & insurances...",
		"Their thieves stole identities from people at the banks",
		"   ",
		"ＡＣＣＯＵＮＴＳ closed without notices",
		"ours yours hers theirs",
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeAll(t *testing.T) {
	n := newTestNormalizer(t)

	got := n.NormalizeAll([]string{"Debt collection calls", "", "Mortgage"})
	want := []string{"debt collection call", "", "mortgage"}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeAll() = %q, want %q", got, want)
	}
}

func TestRemoveStopwords(t *testing.T) {
	n := newTestNormalizer(t)

	got := n.RemoveStopwords([]string{"i", "have", "a", "debt", "ain", "shouldn"})
	if !slices.Equal(got, []string{"debt"}) {
		t.Errorf("RemoveStopwords() = %v, want [debt]", got)
	}
	if !n.IsStopword("about") || n.IsStopword("mortgage") {
		t.Error("IsStopword() misclassified a word")
	}
}
