package ml

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ricesearch/complaint-classifier/internal/features"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// treeNode is a split (Feature >= 0) or a leaf (Feature == -1). Samples with
// x[Feature] <= Threshold go left.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

type decisionTree struct {
	Nodes []treeNode `json:"nodes"`
}

// leafValue returns the value of the leaf row i of X falls into.
func (t *decisionTree) leafValue(X *features.Matrix, i int) []float64 {
	n := 0
	for t.Nodes[n].Feature >= 0 {
		node := &t.Nodes[n]
		if X.At(i, node.Feature) <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.Nodes[n].Value
}

func (t *decisionTree) validate(nFeatures, width int) error {
	if len(t.Nodes) == 0 {
		return errors.ValidationError("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			if len(n.Value) != width {
				return errors.ValidationError(fmt.Sprintf("leaf %d has %d values, want %d", i, len(n.Value), width))
			}
			continue
		}
		if n.Feature >= nFeatures || n.Left <= i || n.Right <= i ||
			n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return errors.ValidationError(fmt.Sprintf("tree node %d is malformed", i))
		}
	}
	return nil
}

// splitScorer defines the criterion a tree is grown with. Statistics are
// additive per-sample vectors (class weights, or gradient and hessian).
type splitScorer interface {
	// gain scores splitting parent into left and right; ok=false rejects
	// the split.
	gain(parent, left, right []float64) (g float64, ok bool)
	// leaf returns the value stored in a leaf with the given statistics.
	leaf(total []float64) []float64
	// terminal reports whether a node must not be split further.
	terminal(total []float64) bool
}

// treeBuilder grows one tree on a sparse matrix. For every node it collects
// the non-zero entries of the node's samples, so split search costs scale
// with the node's non-zeros rather than with the vocabulary size.
type treeBuilder struct {
	x           *features.Matrix
	stats       []float64 // samples x width
	width       int
	scorer      splitScorer
	maxDepth    int
	maxFeatures int        // 0 considers every feature
	rng         *rand.Rand // feature sampling, nil when maxFeatures == 0

	tree   decisionTree
	gains  []float64
	splits []int
}

const minSamplesSplit = 2

func newTreeBuilder(x *features.Matrix, stats []float64, width int, scorer splitScorer,
	maxDepth, maxFeatures int, rng *rand.Rand) *treeBuilder {
	_, p := x.Dims()
	return &treeBuilder{
		x:           x,
		stats:       stats,
		width:       width,
		scorer:      scorer,
		maxDepth:    maxDepth,
		maxFeatures: maxFeatures,
		rng:         rng,
		gains:       make([]float64, p),
		splits:      make([]int, p),
	}
}

func (b *treeBuilder) sampleStats(s int) []float64 {
	return b.stats[s*b.width : (s+1)*b.width]
}

func (b *treeBuilder) sum(samples []int) []float64 {
	total := make([]float64, b.width)
	for _, s := range samples {
		floats.Add(total, b.sampleStats(s))
	}
	return total
}

// grow builds the subtree for samples and returns its root index.
func (b *treeBuilder) grow(samples []int, depth int) int {
	total := b.sum(samples)
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, treeNode{Feature: -1})

	if (b.maxDepth > 0 && depth >= b.maxDepth) || len(samples) < minSamplesSplit || b.scorer.terminal(total) {
		b.tree.Nodes[id].Value = b.scorer.leaf(total)
		return id
	}

	best, ok := b.bestSplit(samples, total)
	if !ok {
		b.tree.Nodes[id].Value = b.scorer.leaf(total)
		return id
	}

	var left, right []int
	for _, s := range samples {
		if b.x.At(s, best.feature) <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	b.gains[best.feature] += best.gain
	b.splits[best.feature]++

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[id] = treeNode{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return id
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

type nzEntry struct {
	feature int
	value   float64
	sample  int
}

type block struct {
	value float64
	stats []float64
}

func (b *treeBuilder) bestSplit(samples []int, total []float64) (split, bool) {
	var entries []nzEntry
	for _, s := range samples {
		idx, vals := b.x.Row(s)
		for t, j := range idx {
			entries = append(entries, nzEntry{feature: j, value: vals[t], sample: s})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, c := entries[i], entries[j]
		if a.feature != c.feature {
			return a.feature < c.feature
		}
		if a.value != c.value {
			return a.value < c.value
		}
		return a.sample < c.sample
	})

	// Candidate features: those taking more than one value in the node.
	type run struct{ lo, hi int }
	var runs []run
	for lo := 0; lo < len(entries); {
		hi := lo
		for hi < len(entries) && entries[hi].feature == entries[lo].feature {
			hi++
		}
		constant := hi-lo == len(samples) && entries[lo].value == entries[hi-1].value
		if !constant {
			runs = append(runs, run{lo, hi})
		}
		lo = hi
	}
	if b.maxFeatures > 0 && b.rng != nil {
		b.rng.Shuffle(len(runs), func(i, j int) { runs[i], runs[j] = runs[j], runs[i] })
		if len(runs) > b.maxFeatures {
			runs = runs[:b.maxFeatures]
		}
	}

	var best split
	found := false
	left := make([]float64, b.width)
	right := make([]float64, b.width)

	for _, r := range runs {
		blocks := b.blocks(entries[r.lo:r.hi], len(samples), total)
		for i := range left {
			left[i] = 0
		}
		for k := 0; k < len(blocks)-1; k++ {
			floats.Add(left, blocks[k].stats)
			floats.SubTo(right, total, left)
			g, ok := b.scorer.gain(total, left, right)
			if ok && (!found || g > best.gain) {
				best = split{
					feature:   entries[r.lo].feature,
					threshold: midpoint(blocks[k].value, blocks[k+1].value),
					gain:      g,
				}
				found = true
			}
		}
	}

	return best, found
}

// blocks groups one feature's node entries by distinct value in ascending
// order, with the implicit zeros as their own block between the negative
// and positive values.
func (b *treeBuilder) blocks(nz []nzEntry, nSamples int, total []float64) []block {
	var out []block
	nonZero := make([]float64, b.width)

	add := func(e nzEntry) {
		st := b.sampleStats(e.sample)
		floats.Add(nonZero, st)
		if len(out) > 0 && out[len(out)-1].value == e.value {
			floats.Add(out[len(out)-1].stats, st)
			return
		}
		out = append(out, block{value: e.value, stats: append([]float64(nil), st...)})
	}

	i := 0
	for ; i < len(nz) && nz[i].value < 0; i++ {
		add(nz[i])
	}
	zeroAt := len(out)
	for ; i < len(nz); i++ {
		add(nz[i])
	}

	if len(nz) < nSamples {
		zeros := make([]float64, b.width)
		floats.SubTo(zeros, total, nonZero)
		out = append(out, block{})
		copy(out[zeroAt+1:], out[zeroAt:])
		out[zeroAt] = block{value: 0, stats: zeros}
	}
	return out
}

func midpoint(a, b float64) float64 {
	m := a/2 + b/2
	if m >= b {
		m = a
	}
	return m
}

// normalizeInPlace scales v to sum to one. All-zero vectors are left alone.
func normalizeInPlace(v []float64) {
	s := floats.Sum(v)
	if s <= 0 {
		return
	}
	for i := range v {
		v[i] /= s
	}
}

// giniScorer grows classification trees. Statistics are per-class sample
// weights; the gain is the weighted impurity decrease.
type giniScorer struct{}

func gini(v []float64) (weight, impurity float64) {
	weight = floats.Sum(v)
	if weight <= 0 {
		return 0, 0
	}
	sq := 0.0
	for _, c := range v {
		p := c / weight
		sq += p * p
	}
	return weight, 1 - sq
}

func (giniScorer) gain(parent, left, right []float64) (float64, bool) {
	wp, ip := gini(parent)
	wl, il := gini(left)
	wr, ir := gini(right)
	if wl <= 0 || wr <= 0 {
		return 0, false
	}
	return wp*ip - wl*il - wr*ir, true
}

func (giniScorer) leaf(total []float64) []float64 {
	out := append([]float64(nil), total...)
	normalizeInPlace(out)
	return out
}

func (giniScorer) terminal(total []float64) bool {
	_, imp := gini(total)
	return imp <= 0
}

// secondOrderScorer grows regression trees on gradient and hessian sums
// [G, H] using the regularized second-order gain.
type secondOrderScorer struct {
	lambda         float64
	gamma          float64
	minChildWeight float64
	learningRate   float64
}

func (s secondOrderScorer) score(g, h float64) float64 {
	return g * g / (h + s.lambda)
}

func (s secondOrderScorer) gain(parent, left, right []float64) (float64, bool) {
	if left[1] < s.minChildWeight || right[1] < s.minChildWeight {
		return 0, false
	}
	g := 0.5*(s.score(left[0], left[1])+s.score(right[0], right[1])-s.score(parent[0], parent[1])) - s.gamma
	return g, g > 0
}

func (s secondOrderScorer) leaf(total []float64) []float64 {
	return []float64{-total[0] / (total[1] + s.lambda) * s.learningRate}
}

func (s secondOrderScorer) terminal(total []float64) bool {
	return total[1] < 2*s.minChildWeight
}
