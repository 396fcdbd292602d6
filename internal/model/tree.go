package model

import (
	"math/rand"
	"sort"

	"github.com/mounikasaka1/hackai/internal/features"
)

// minImpurityDecrease rejects splits that do not improve purity.
const minImpurityDecrease = 1e-12

// node is one node of a CART tree stored in a flat slice. Leaves carry the
// weighted class distribution.
type node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Leaf      bool      `json:"leaf,omitempty"`
	Proba     []float64 `json:"p,omitempty"`
}

// tree is a fitted decision tree.
type tree struct {
	Nodes []node `json:"nodes"`
}

// treeParams are the growth limits shared by every tree of a forest.
type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
	nClasses        int
}

// treeBuilder grows one tree. It owns its RNG and scratch buffers and is
// never shared between goroutines.
type treeBuilder struct {
	params  treeParams
	x       []features.Vector
	y       []int
	weights []float64 // per row: bootstrap count * class weight
	rng     *rand.Rand
	nodes   []node
}

type sampleValue struct {
	value float64
	row   int
}

func growTree(params treeParams, x []features.Vector, y []int, weights []float64, rows []int, rng *rand.Rand) *tree {
	b := &treeBuilder{params: params, x: x, y: y, weights: weights, rng: rng}
	b.build(rows, 0)
	return &tree{Nodes: b.nodes}
}

// build appends the subtree for rows and returns its node index.
func (b *treeBuilder) build(rows []int, depth int) int {
	dist, total := b.distribution(rows)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{})

	if depth >= b.params.maxDepth || len(rows) < b.params.minSamplesSplit || isPure(dist) {
		b.nodes[idx] = leaf(dist, total)
		return idx
	}

	feature, threshold, ok := b.bestSplit(rows, dist, total)
	if !ok {
		b.nodes[idx] = leaf(dist, total)
		return idx
	}

	left, right := partition(b.x, rows, feature, threshold)
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

func (b *treeBuilder) distribution(rows []int) ([]float64, float64) {
	dist := make([]float64, b.params.nClasses)
	var total float64
	for _, r := range rows {
		dist[b.y[r]] += b.weights[r]
		total += b.weights[r]
	}
	return dist, total
}

// activeFeatures lists features that are non-zero in at least one row. Every
// other feature is constant at the node and cannot split it.
func (b *treeBuilder) activeFeatures(rows []int) []int {
	seen := make(map[int]struct{})
	for _, r := range rows {
		for _, f := range b.x[r].Indices {
			seen[f] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

func (b *treeBuilder) bestSplit(rows []int, parent []float64, total float64) (int, float64, bool) {
	candidates := b.activeFeatures(rows)
	if len(candidates) == 0 {
		return 0, 0, false
	}
	if b.params.maxFeatures > 0 && len(candidates) > b.params.maxFeatures {
		b.rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:b.params.maxFeatures]
	}

	parentImpurity := gini(parent, total) * total
	bestScore := parentImpurity
	bestFeature, bestThreshold, found := 0, 0.0, false

	values := make([]sampleValue, len(rows))
	left := make([]float64, b.params.nClasses)
	for _, f := range candidates {
		for i, r := range rows {
			values[i] = sampleValue{value: b.x[r].Get(f), row: r}
		}
		sort.Slice(values, func(i, j int) bool {
			if values[i].value != values[j].value {
				return values[i].value < values[j].value
			}
			return values[i].row < values[j].row
		})

		for k := range left {
			left[k] = 0
		}
		var leftTotal float64
		for i := 0; i < len(values)-1; i++ {
			r := values[i].row
			left[b.y[r]] += b.weights[r]
			leftTotal += b.weights[r]
			if values[i].value == values[i+1].value {
				continue
			}

			rightTotal := total - leftTotal
			if leftTotal <= 0 || rightTotal <= 0 {
				continue
			}
			score := giniSplit(left, leftTotal, parent, total)
			if score < bestScore-minImpurityDecrease {
				bestScore = score
				bestFeature = f
				bestThreshold = (values[i].value + values[i+1].value) / 2
				found = true
			}
		}
	}

	return bestFeature, bestThreshold, found
}

// giniSplit is the weighted impurity of a split given the left-hand class
// weights; the right side is parent minus left.
func giniSplit(left []float64, leftTotal float64, parent []float64, total float64) float64 {
	rightTotal := total - leftTotal
	var sumL, sumR float64
	for k, p := range parent {
		l := left[k]
		r := p - l
		sumL += l * l
		sumR += r * r
	}
	impL := 1 - sumL/(leftTotal*leftTotal)
	impR := 1 - sumR/(rightTotal*rightTotal)
	return impL*leftTotal + impR*rightTotal
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	var sum float64
	for _, w := range dist {
		p := w / total
		sum += p * p
	}
	return 1 - sum
}

func isPure(dist []float64) bool {
	nonZero := 0
	for _, w := range dist {
		if w > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func leaf(dist []float64, total float64) node {
	proba := make([]float64, len(dist))
	if total > 0 {
		for k, w := range dist {
			proba[k] = w / total
		}
	}
	return node{Leaf: true, Proba: proba}
}

func partition(x []features.Vector, rows []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, r := range rows {
		if x[r].Get(feature) <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

// predictProba walks the tree for v.
func (t *tree) predictProba(v features.Vector) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Proba
		}
		if v.Get(n.Feature) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
