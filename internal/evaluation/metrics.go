// Package evaluation scores fitted classifiers and produces diagnostics.
package evaluation

import (
	"fmt"
	"slices"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// classStats holds the per-class counts behind precision and recall.
type classStats struct {
	labels    []int
	tp        []int
	predicted []int
	support   []int
}

// unionLabels returns the sorted distinct labels of y and pred.
func unionLabels(y, pred []int) []int {
	labels := append(slices.Clone(y), pred...)
	slices.Sort(labels)
	return slices.Compact(labels)
}

func countClasses(y, pred, labels []int) classStats {
	idx := make(map[int]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	s := classStats{
		labels:    labels,
		tp:        make([]int, len(labels)),
		predicted: make([]int, len(labels)),
		support:   make([]int, len(labels)),
	}
	for i := range y {
		if j, ok := idx[y[i]]; ok {
			s.support[j]++
		}
		if j, ok := idx[pred[i]]; ok {
			s.predicted[j]++
		}
		if y[i] == pred[i] {
			if j, ok := idx[y[i]]; ok {
				s.tp[j]++
			}
		}
	}
	return s
}

// ratio returns a/b, or 0 when b is zero.
func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func f1(p, r float64) float64 {
	return ratio(2*p*r, p+r)
}

// perClass returns precision, recall and F1 for class j.
func (s classStats) perClass(j int) (p, r, f float64) {
	p = ratio(float64(s.tp[j]), float64(s.predicted[j]))
	r = ratio(float64(s.tp[j]), float64(s.support[j]))
	return p, r, f1(p, r)
}

// averages returns the unweighted and support-weighted means of the
// per-class scores.
func (s classStats) averages() (macro, weighted [3]float64) {
	total := 0
	for j := range s.labels {
		p, r, f := s.perClass(j)
		w := float64(s.support[j])
		macro[0] += p
		macro[1] += r
		macro[2] += f
		weighted[0] += w * p
		weighted[1] += w * r
		weighted[2] += w * f
		total += s.support[j]
	}
	for k := range macro {
		macro[k] = ratio(macro[k], float64(len(s.labels)))
		weighted[k] = ratio(weighted[k], float64(total))
	}
	return macro, weighted
}

func checkLabels(y, pred []int) error {
	if len(y) == 0 {
		return errors.ValidationError("cannot score an empty label set")
	}
	if len(y) != len(pred) {
		return errors.ValidationError(fmt.Sprintf("%d labels but %d predictions", len(y), len(pred)))
	}
	return nil
}

// Accuracy returns the fraction of correct predictions.
func Accuracy(y, pred []int) float64 {
	correct := 0
	for i := range y {
		if y[i] == pred[i] {
			correct++
		}
	}
	return ratio(float64(correct), float64(len(y)))
}

// Score computes Metrics from true and predicted labels. Averages run over
// the union of true and predicted labels; a class that is never predicted
// (or never present) scores zero precision (or recall).
func Score(y, pred []int) (Metrics, error) {
	if err := checkLabels(y, pred); err != nil {
		return Metrics{}, err
	}

	macro, weighted := countClasses(y, pred, unionLabels(y, pred)).averages()
	return Metrics{
		Accuracy:          Accuracy(y, pred),
		PrecisionMacro:    macro[0],
		RecallMacro:       macro[1],
		F1Macro:           macro[2],
		PrecisionWeighted: weighted[0],
		RecallWeighted:    weighted[1],
		F1Weighted:        weighted[2],
	}, nil
}
