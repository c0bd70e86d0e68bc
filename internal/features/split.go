package features

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// NewRand returns the deterministic generator used for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// StratifiedSplit partitions sample indices into train and test sets so that
// each label keeps roughly its share in both. The test set holds
// ceil(testFraction*n) samples. Per-label test counts are allocated
// proportionally; leftover slots go to the labels with the largest
// fractional share, ties broken by a seeded shuffle. Both index lists are
// returned in ascending order. The result depends only on labels, fraction
// and seed.
func StratifiedSplit(labels []int, testFraction float64, seed uint64) (train, test []int, err error) {
	n := len(labels)
	if n < 2 {
		return nil, nil, errors.ValidationError(fmt.Sprintf("need at least 2 samples to split, got %d", n))
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, errors.ValidationError(fmt.Sprintf("test fraction must be in (0, 1), got %g", testFraction))
	}

	nTest := int(math.Ceil(testFraction * float64(n)))
	nTest = min(max(nTest, 1), n-1)

	byLabel := make(map[int][]int)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}
	classes := make([]int, 0, len(byLabel))
	for l := range byLabel {
		classes = append(classes, l)
	}
	sort.Ints(classes)

	rng := NewRand(seed)

	alloc := make([]int, len(classes))
	frac := make([]float64, len(classes))
	assigned := 0
	for k, c := range classes {
		exact := float64(nTest) * float64(len(byLabel[c])) / float64(n)
		alloc[k] = int(math.Floor(exact))
		frac[k] = exact - float64(alloc[k])
		assigned += alloc[k]
	}

	order := rng.Perm(len(classes))
	sort.SliceStable(order, func(a, b int) bool { return frac[order[a]] > frac[order[b]] })
	for _, k := range order {
		if assigned == nTest {
			break
		}
		if alloc[k] < len(byLabel[classes[k]]) {
			alloc[k]++
			assigned++
		}
	}

	for k, c := range classes {
		members := slices.Clone(byLabel[c])
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		test = append(test, members[:alloc[k]]...)
		train = append(train, members[alloc[k]:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// Fold is one cross-validation split.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits sample indices into k folds without shuffling.
// Labels are ranked by first appearance and laid out in sorted order; fold i
// takes every k-th entry of that ordering starting at i, so each fold gets a
// near-equal share of every label. Within a label, samples are assigned to
// folds in index order.
func StratifiedKFold(labels []int, k int) ([]Fold, error) {
	n := len(labels)
	if k < 2 {
		return nil, errors.ValidationError(fmt.Sprintf("number of folds must be at least 2, got %d", k))
	}
	if k > n {
		return nil, errors.ValidationError(fmt.Sprintf("cannot have %d folds with %d samples", k, n))
	}

	rank := make(map[int]int)
	encoded := make([]int, n)
	for i, l := range labels {
		r, ok := rank[l]
		if !ok {
			r = len(rank)
			rank[l] = r
		}
		encoded[i] = r
	}
	nClasses := len(rank)

	counts := make([]int, nClasses)
	for _, e := range encoded {
		counts[e]++
	}
	if slices.Max(counts) < k {
		return nil, errors.ValidationError(fmt.Sprintf("%d folds exceed the size of every class", k))
	}

	sorted := slices.Clone(encoded)
	slices.Sort(sorted)

	// allocation[f][c]: samples of class c placed in fold f.
	allocation := make([][]int, k)
	for f := range allocation {
		allocation[f] = make([]int, nClasses)
		for i := f; i < n; i += k {
			allocation[f][sorted[i]]++
		}
	}

	testFold := make([]int, n)
	for c := 0; c < nClasses; c++ {
		var folds []int
		for f := 0; f < k; f++ {
			for range allocation[f][c] {
				folds = append(folds, f)
			}
		}
		next := 0
		for i, e := range encoded {
			if e == c {
				testFold[i] = folds[next]
				next++
			}
		}
	}

	out := make([]Fold, k)
	for i, f := range testFold {
		for g := range out {
			if g == f {
				out[g].Test = append(out[g].Test, i)
			} else {
				out[g].Train = append(out[g].Train, i)
			}
		}
	}
	return out, nil
}
