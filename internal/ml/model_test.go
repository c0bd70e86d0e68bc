package ml

import (
	"math"
	"slices"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// toyData returns 30 samples of 3 classes over 4 features. Feature c is
// present only for class c; feature 3 is noise shared by every class.
func toyData() (*features.Matrix, []int) {
	const n = 30
	rows := make([][]features.Entry, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		c := i % 3
		y[i] = c + 1 // labels 1..3 to exercise label encoding
		rows[i] = []features.Entry{{Col: c, Value: 1 + 0.1*float64(i%5)}}
		if i%2 == 0 {
			rows[i] = append(rows[i], features.Entry{Col: 3, Value: 0.5})
		}
	}
	return features.NewMatrix(4, rows), y
}

func smallForest() ForestParams {
	p := DefaultForestParams()
	p.NEstimators = 15
	return p
}

func smallBoosting() BoostingParams {
	p := DefaultBoostingParams()
	p.NEstimators = 10
	return p
}

func allModels() []Model {
	return []Model{
		NewLogisticRegression(DefaultLogisticParams()),
		NewNaiveBayes(DefaultNaiveBayesParams()),
		NewRandomForest(smallForest()),
		NewLinearSVM(DefaultSVMParams()),
		NewGradientBoosting(smallBoosting()),
	}
}

func accuracy(pred, y []int) float64 {
	hits := 0
	for i := range y {
		if pred[i] == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(y))
}

func TestModels_FitPredict(t *testing.T) {
	X, y := toyData()

	for _, m := range allModels() {
		t.Run(string(m.Kind()), func(t *testing.T) {
			if err := m.Fit(X, y); err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if got := m.Classes(); !slices.Equal(got, []int{1, 2, 3}) {
				t.Errorf("Classes() = %v", got)
			}

			pred, err := m.Predict(X)
			if err != nil {
				t.Fatalf("Predict() error = %v", err)
			}
			if acc := accuracy(pred, y); acc < 0.9 {
				t.Errorf("training accuracy = %.2f, want >= 0.9", acc)
			}
		})
	}
}

func TestModels_PredictProba(t *testing.T) {
	X, y := toyData()

	for _, m := range allModels() {
		pm, ok := m.(ProbabilisticModel)
		if !ok {
			continue
		}
		t.Run(string(m.Kind()), func(t *testing.T) {
			if err := pm.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			proba, err := pm.PredictProba(X)
			if err != nil {
				t.Fatalf("PredictProba() error = %v", err)
			}
			r, c := proba.Dims()
			if r != len(y) || c != 3 {
				t.Fatalf("PredictProba() dims = %dx%d", r, c)
			}
			pred, _ := pm.Predict(X)
			for i := 0; i < r; i++ {
				row := proba.RawRowView(i)
				if math.Abs(floats.Sum(row)-1) > 1e-9 {
					t.Errorf("row %d sums to %g", i, floats.Sum(row))
				}
				if pm.Classes()[floats.MaxIdx(row)] != pred[i] {
					t.Errorf("row %d: argmax proba disagrees with Predict", i)
				}
			}
		})
	}
}

func TestModels_NotFitted(t *testing.T) {
	X, _ := toyData()

	for _, m := range allModels() {
		if _, err := m.Predict(X); !errors.IsNotFitted(err) {
			t.Errorf("%s: Predict() before Fit error = %v, want not fitted", m.Kind(), err)
		}
	}
}

func TestModels_ShapeMismatch(t *testing.T) {
	X, y := toyData()
	wide := features.NewMatrix(5, [][]features.Entry{{{Col: 4, Value: 1}}})

	for _, m := range allModels() {
		if err := m.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Predict(wide); !errors.IsValidation(err) {
			t.Errorf("%s: Predict() on wrong width error = %v, want validation", m.Kind(), err)
		}
		if err := m.Clone().Fit(X, y[:3]); !errors.IsValidation(err) {
			t.Errorf("%s: Fit() with mismatched labels error = %v, want validation", m.Kind(), err)
		}
	}
}

func TestModels_SingleClass(t *testing.T) {
	X := features.NewMatrix(3, [][]features.Entry{
		{{Col: 0, Value: 1}},
		{{Col: 1, Value: 2}},
	})
	y := []int{2, 2}

	for _, m := range allModels() {
		t.Run(string(m.Kind()), func(t *testing.T) {
			if err := m.Fit(X, y); err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			pred, err := m.Predict(X)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(pred, []int{2, 2}) {
				t.Errorf("Predict() = %v", pred)
			}
			if pm, ok := m.(ProbabilisticModel); ok {
				proba, err := pm.PredictProba(X)
				if err != nil {
					t.Fatal(err)
				}
				if proba.At(0, 0) != 1 || proba.At(1, 0) != 1 {
					t.Errorf("single-class probabilities should be 1")
				}
			}
		})
	}
}

func TestModels_EmptyPredict(t *testing.T) {
	X, y := toyData()
	empty := features.NewMatrix(4, nil)

	for _, m := range allModels() {
		if err := m.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		pred, err := m.Predict(empty)
		if err != nil || len(pred) != 0 {
			t.Errorf("%s: Predict(empty) = %v, %v", m.Kind(), pred, err)
		}
	}
}

func TestModels_CloneIsUnfitted(t *testing.T) {
	X, y := toyData()

	for _, m := range allModels() {
		if err := m.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		c := m.Clone()
		if c.Kind() != m.Kind() {
			t.Errorf("Clone() kind = %s, want %s", c.Kind(), m.Kind())
		}
		if _, err := c.Predict(X); !errors.IsNotFitted(err) {
			t.Errorf("%s: clone should be unfitted", m.Kind())
		}
	}
}

func TestCapabilityOf(t *testing.T) {
	tests := []struct {
		model Model
		want  Capability
		proba bool
	}{
		{NewLogisticRegression(DefaultLogisticParams()), CapabilityCoefficients, true},
		{NewNaiveBayes(DefaultNaiveBayesParams()), CapabilityNone, true},
		{NewRandomForest(DefaultForestParams()), CapabilityImportances, true},
		{NewLinearSVM(DefaultSVMParams()), CapabilityCoefficients, false},
		{NewGradientBoosting(DefaultBoostingParams()), CapabilityImportances, true},
	}

	for _, tt := range tests {
		if got := CapabilityOf(tt.model); got != tt.want {
			t.Errorf("CapabilityOf(%s) = %s, want %s", tt.model.Kind(), got, tt.want)
		}
		if got := SupportsProba(tt.model); got != tt.proba {
			t.Errorf("SupportsProba(%s) = %v, want %v", tt.model.Kind(), got, tt.proba)
		}
	}
}

func TestTreeEnsembles_Importances(t *testing.T) {
	X, y := toyData()

	for _, m := range []ImportanceModel{NewRandomForest(smallForest()), NewGradientBoosting(smallBoosting())} {
		t.Run(string(m.Kind()), func(t *testing.T) {
			if _, err := m.FeatureImportances(); !errors.IsNotFitted(err) {
				t.Errorf("FeatureImportances() before Fit error = %v", err)
			}
			if err := m.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			imp, err := m.FeatureImportances()
			if err != nil {
				t.Fatal(err)
			}
			if len(imp) != 4 {
				t.Fatalf("len = %d, want 4", len(imp))
			}
			if math.Abs(floats.Sum(imp)-1) > 1e-9 {
				t.Errorf("importances sum to %g", floats.Sum(imp))
			}
			if imp[3] >= floats.Max(imp[:3]) {
				t.Errorf("noise feature ranked highest: %v", imp)
			}
		})
	}
}

func TestLinearModels_Coefficients(t *testing.T) {
	X, y := toyData()

	for _, m := range []LinearModel{NewLogisticRegression(DefaultLogisticParams()), NewLinearSVM(DefaultSVMParams())} {
		if _, err := m.Coefficients(); !errors.IsNotFitted(err) {
			t.Errorf("%s: Coefficients() before Fit error = %v", m.Kind(), err)
		}
		if err := m.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		coef, err := m.Coefficients()
		if err != nil {
			t.Fatal(err)
		}
		r, c := coef.Dims()
		if r != 3 || c != 4 {
			t.Fatalf("%s: coefficient dims = %dx%d", m.Kind(), r, c)
		}
		// Each class weighs its own indicator feature most.
		for k := 0; k < 3; k++ {
			if floats.MaxIdx(coef.RawRowView(k)) != k {
				t.Errorf("%s: class %d row = %v", m.Kind(), k, coef.RawRowView(k))
			}
		}
	}
}

func TestRandomForest_Deterministic(t *testing.T) {
	X, y := toyData()

	fit := func(workers int) *RandomForest {
		p := smallForest()
		p.Workers = workers
		m := NewRandomForest(p)
		if err := m.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		return m
	}

	a, b := fit(1), fit(8)
	pa, _ := a.PredictProba(X)
	pb, _ := b.PredictProba(X)
	r, c := pa.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if pa.At(i, j) != pb.At(i, j) {
				t.Fatalf("probabilities differ at (%d,%d) across worker counts", i, j)
			}
		}
	}
	ia, _ := a.FeatureImportances()
	ib, _ := b.FeatureImportances()
	if !slices.Equal(ia, ib) {
		t.Errorf("importances differ: %v vs %v", ia, ib)
	}
}

func TestNaiveBayes_RejectsNegative(t *testing.T) {
	X := features.NewMatrix(2, [][]features.Entry{{{Col: 0, Value: -1}}, {{Col: 1, Value: 1}}})

	if err := NewNaiveBayes(DefaultNaiveBayesParams()).Fit(X, []int{0, 1}); !errors.IsValidation(err) {
		t.Errorf("Fit() error = %v, want validation error", err)
	}
}

func TestNaiveBayes_KnownValues(t *testing.T) {
	// Class 0 counts: [2, 0]; class 1 counts: [0, 1]; alpha 1.
	X := features.NewMatrix(2, [][]features.Entry{{{Col: 0, Value: 2}}, {{Col: 1, Value: 1}}})
	m := NewNaiveBayes(DefaultNaiveBayesParams())
	if err := m.Fit(X, []int{0, 1}); err != nil {
		t.Fatal(err)
	}

	want := [][]float64{
		{math.Log(3.0 / 4), math.Log(1.0 / 4)},
		{math.Log(1.0 / 3), math.Log(2.0 / 3)},
	}
	for c := range want {
		for j := range want[c] {
			if got := m.featureLogProb.At(c, j); math.Abs(got-want[c][j]) > 1e-12 {
				t.Errorf("feature_log_prob[%d][%d] = %g, want %g", c, j, got, want[c][j])
			}
		}
		if math.Abs(m.classLogPrior[c]-math.Log(0.5)) > 1e-12 {
			t.Errorf("class prior %d = %g", c, m.classLogPrior[c])
		}
	}
}

func TestSoftmaxLoss_Gradient(t *testing.T) {
	X, y := toyData()
	_, encoded := encodeLabels(y)
	loss := softmaxLoss(X, encoded, 3, 0.7)

	theta := make([]float64, 3*5)
	for i := range theta {
		theta[i] = 0.1 * float64(i%7-3)
	}
	grad := make([]float64, len(theta))
	loss(theta, grad)

	numeric := fd.Gradient(nil, func(x []float64) float64 {
		return loss(x, make([]float64, len(x)))
	}, theta, &fd.Settings{Formula: fd.Central})

	for i := range grad {
		if math.Abs(grad[i]-numeric[i]) > 1e-5*math.Max(1, math.Abs(numeric[i])) {
			t.Errorf("grad[%d] = %g, finite difference %g", i, grad[i], numeric[i])
		}
	}
}

func TestSquaredHingeLoss_Gradient(t *testing.T) {
	X, y := toyData()
	sign := make([]float64, len(y))
	for i, l := range y {
		sign[i] = -1
		if l == 2 {
			sign[i] = 1
		}
	}
	loss := squaredHingeLoss(X, sign, 1.3)

	theta := []float64{0.2, -0.1, 0.05, 0.3, -0.2}
	grad := make([]float64, len(theta))
	loss(theta, grad)

	numeric := fd.Gradient(nil, func(x []float64) float64 {
		return loss(x, make([]float64, len(x)))
	}, theta, &fd.Settings{Formula: fd.Central})

	for i := range grad {
		if math.Abs(grad[i]-numeric[i]) > 1e-5*math.Max(1, math.Abs(numeric[i])) {
			t.Errorf("grad[%d] = %g, finite difference %g", i, grad[i], numeric[i])
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	lr := NewLogisticRegression(DefaultLogisticParams())
	nb := NewNaiveBayes(DefaultNaiveBayesParams())
	svm := NewLinearSVM(DefaultSVMParams())

	r.Register("Logistic Regression", lr)
	r.Register("Naive Bayes", nb)
	r.Register("Logistic Regression", svm)

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if got := r.Names(); !slices.Equal(got, []string{"Logistic Regression", "Naive Bayes"}) {
		t.Errorf("Names() = %v", got)
	}
	if m, _ := r.Get("Logistic Regression"); m != svm {
		t.Error("Register should overwrite an existing name")
	}

	var seen []string
	for name := range r.All() {
		seen = append(seen, name)
	}
	if !slices.Equal(seen, r.Names()) {
		t.Errorf("All() order = %v", seen)
	}

	if !r.Remove("Naive Bayes") || r.Remove("Naive Bayes") {
		t.Error("Remove() should succeed once")
	}
	if _, ok := r.Get("Naive Bayes"); ok {
		t.Error("removed model still present")
	}
}
