package ml

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

func TestCodec_RoundTrip(t *testing.T) {
	X, y := toyData()

	for _, m := range allModels() {
		t.Run(string(m.Kind()), func(t *testing.T) {
			if err := m.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			data, err := Marshal(m)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			restored, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if restored.Kind() != m.Kind() {
				t.Errorf("kind = %s, want %s", restored.Kind(), m.Kind())
			}

			want, _ := m.Predict(X)
			got, err := restored.Predict(X)
			if err != nil {
				t.Fatal(err)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("prediction %d differs after round trip", i)
				}
			}

			if pm, ok := m.(ProbabilisticModel); ok {
				pa, _ := pm.PredictProba(X)
				pb, err := restored.(ProbabilisticModel).PredictProba(X)
				if err != nil {
					t.Fatal(err)
				}
				r, c := pa.Dims()
				for i := 0; i < r; i++ {
					for j := 0; j < c; j++ {
						if pa.At(i, j) != pb.At(i, j) {
							t.Fatalf("probability (%d,%d) differs after round trip", i, j)
						}
					}
				}
			}

			again, err := Marshal(restored)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(again, data) {
				t.Error("re-encoding a restored model changed its bytes")
			}
		})
	}
}

func TestCodec_Unfitted(t *testing.T) {
	for _, m := range allModels() {
		if _, err := Marshal(m); !errors.IsNotFitted(err) {
			t.Errorf("%s: Marshal() of unfitted model = %v, want NOT_FITTED", m.Kind(), err)
		}
	}
}

func TestCodec_Corruption(t *testing.T) {
	X, y := toyData()
	m := NewNaiveBayes(DefaultNaiveBayesParams())
	if err := m.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}

	tampered := env
	tampered.State = bytes.Replace(env.State, []byte(`"alpha":1`), []byte(`"alpha":2`), 1)
	badSum, _ := json.Marshal(tampered)

	unknown := env
	unknown.Kind = "perceptron"
	badKind, _ := json.Marshal(unknown)

	future := env
	future.Version = FormatVersion + 1
	badVersion, _ := json.Marshal(future)

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("model")},
		{"checksum mismatch", badSum},
		{"unknown kind", badKind},
		{"future version", badVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal(tt.data); !errors.IsValidation(err) {
				t.Errorf("Unmarshal() error = %v, want validation error", err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	for _, kind := range []Kind{
		KindLogisticRegression, KindNaiveBayes, KindRandomForest, KindLinearSVM, KindGradientBoosting,
	} {
		m, err := New(kind)
		if err != nil {
			t.Fatalf("New(%s) error = %v", kind, err)
		}
		if m.Kind() != kind {
			t.Errorf("New(%s).Kind() = %s", kind, m.Kind())
		}
	}
}
