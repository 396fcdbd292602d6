package model

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/mounikasaka1/hackai/internal/features"
)

// seedStride spreads per-tree seeds so neighbouring trees do not share a
// random stream.
const seedStride = 7919

// Params controls random forest training.
type Params struct {
	Trees           int   `json:"trees" yaml:"trees"`
	MaxDepth        int   `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split" yaml:"min_samples_split"`
	Seed            int64 `json:"seed" yaml:"seed"`
	// Workers bounds tree-level parallelism. Zero means one per tree.
	Workers int `json:"-" yaml:"workers"`
}

// DefaultParams returns the production training parameters.
func DefaultParams() Params {
	return Params{Trees: 200, MaxDepth: 10, MinSamplesSplit: 5, Seed: 42}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Trees <= 0 {
		p.Trees = d.Trees
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	return p
}

// Forest is a fitted random forest classifier over sparse vectors.
type Forest struct {
	Classes int     `json:"classes"`
	Trees   []*tree `json:"trees"`
}

// BalancedWeights returns n_samples / (n_classes * count(class)) per class.
func BalancedWeights(y []int, nClasses int) []float64 {
	counts := make([]int, nClasses)
	for _, c := range y {
		counts[c]++
	}
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	weights := make([]float64, nClasses)
	for k, c := range counts {
		if c > 0 {
			weights[k] = float64(len(y)) / (float64(present) * float64(c))
		}
	}
	return weights
}

// FitForest trains a forest. Each tree draws a bootstrap sample with its own
// seeded RNG and writes only its own slot, so results do not depend on
// scheduling.
func FitForest(ctx context.Context, x []features.Vector, y []int, nClasses int, params Params) (*Forest, error) {
	params = params.withDefaults()
	n := len(x)
	classWeights := BalancedWeights(y, nClasses)

	active := make(map[int]struct{})
	for _, v := range x {
		for _, f := range v.Indices {
			active[f] = struct{}{}
		}
	}
	maxFeatures := int(math.Sqrt(float64(len(active))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	tp := treeParams{
		maxDepth:        params.MaxDepth,
		minSamplesSplit: params.MinSamplesSplit,
		maxFeatures:     maxFeatures,
		nClasses:        nClasses,
	}

	workers := params.Workers
	if workers <= 0 || workers > params.Trees {
		workers = params.Trees
	}

	trees := make([]*tree, params.Trees)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewSource(params.Seed + int64(i)*seedStride))
				weights, rows := bootstrap(rng, n, y, classWeights)
				trees[i] = growTree(tp, x, y, weights, rows, rng)
			}
		}()
	}

	var err error
feed:
	for i := range trees {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	return &Forest{Classes: nClasses, Trees: trees}, nil
}

// bootstrap samples n rows with replacement and folds duplicate draws into
// row weights.
func bootstrap(rng *rand.Rand, n int, y []int, classWeights []float64) ([]float64, []int) {
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		counts[rng.Intn(n)]++
	}
	weights := make([]float64, n)
	rows := make([]int, 0, n)
	for r, c := range counts {
		if c == 0 {
			continue
		}
		weights[r] = float64(c) * classWeights[y[r]]
		rows = append(rows, r)
	}
	return weights, rows
}

// PredictProba averages the leaf distributions of every tree.
func (f *Forest) PredictProba(v features.Vector) []float64 {
	out := make([]float64, f.Classes)
	for _, t := range f.Trees {
		for k, p := range t.predictProba(v) {
			out[k] += p
		}
	}
	if len(f.Trees) > 0 {
		for k := range out {
			out[k] /= float64(len(f.Trees))
		}
	}
	return out
}

// Predict returns the most probable class, the lowest index on ties.
func (f *Forest) Predict(v features.Vector) int {
	return argmax(f.PredictProba(v))
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}
