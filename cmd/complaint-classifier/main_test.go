package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ricesearch/complaint-classifier/internal/evaluation"
	"github.com/ricesearch/complaint-classifier/internal/ml"
	"github.com/ricesearch/complaint-classifier/internal/trainer"
)

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("first complaint\n\n  second complaint  \n"))
	if err != nil {
		t.Fatalf("readLines() error = %v", err)
	}
	if len(lines) != 2 || lines[1] != "second complaint" {
		t.Errorf("readLines() = %q", lines)
	}

	if _, err := readLines(strings.NewReader("\n \n")); err == nil {
		t.Error("readLines() of blank input should fail")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer narrative", 10, "a longe..."},
		{"prêt hypothécaire", 8, "prêt ..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestDescribeModels(t *testing.T) {
	infos, err := describeModels()
	if err != nil {
		t.Fatalf("describeModels() error = %v", err)
	}
	if len(infos) != len(trainer.AllKeys) {
		t.Fatalf("got %d models, want %d", len(infos), len(trainer.AllKeys))
	}

	want := map[ml.Kind]struct {
		proba bool
		cap   ml.Capability
	}{
		ml.KindLogisticRegression: {true, ml.CapabilityCoefficients},
		ml.KindNaiveBayes:         {true, ml.CapabilityNone},
		ml.KindRandomForest:       {true, ml.CapabilityImportances},
		ml.KindLinearSVM:          {false, ml.CapabilityCoefficients},
		ml.KindGradientBoosting:   {true, ml.CapabilityImportances},
	}
	for _, info := range infos {
		w := want[info.Kind]
		if info.Probabilities != w.proba || info.Explanation != w.cap {
			t.Errorf("%s: probabilities=%v explanation=%s, want %v %s",
				info.Key, info.Probabilities, info.Explanation, w.proba, w.cap)
		}
	}
}

func TestMetricsCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"metrics"})

	if err := root.Execute(); err != nil {
		t.Fatalf("metrics error = %v", err)
	}
	for _, name := range evaluation.MetricNames {
		if !strings.Contains(out.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "complaint-classifier dev") {
		t.Errorf("version output = %q", out.String())
	}
}
