// Package forest implements a binary random-forest classifier: bagged CART
// trees grown on Gini impurity with a random feature subset per split.
package forest

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"

	"github.com/okian/puckcast/internal/domain/model"
)

// Default hyperparameters.
const (
	DefaultTrees           = 250
	DefaultMaxDepth        = 15
	DefaultSeed            = 31
	DefaultMinSamplesSplit = 2
)

// Params are the forest hyperparameters.
type Params struct {
	Trees           int
	MaxDepth        int
	MaxFeatures     int
	MinSamplesSplit int
	Seed            int64
	Workers         int
}

// Node is one tree node. Leaves carry the positive-class fraction.
type Node struct {
	Feature   int
	Threshold float64
	Left      int32
	Right     int32
	Leaf      bool
	Prob      float64
}

// Tree is a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node
}

func (t *Tree) prob(x []float64) float64 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Prob
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a fitted classifier. All fields are exported for gob.
type Forest struct {
	Params      Params
	NumFeatures int
	Trees       []Tree
	Importances []float64
}

// Fit grows a forest on X with binary labels y. Fitting is deterministic
// for a given seed regardless of worker count.
func Fit(ctx context.Context, X [][]float64, y []int, opts ...Option) (*Forest, error) {
	const op = "forest.Fit"

	p := Params{
		Trees:           DefaultTrees,
		MaxDepth:        DefaultMaxDepth,
		MinSamplesSplit: DefaultMinSamplesSplit,
		Seed:            DefaultSeed,
		Workers:         runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&p)
	}

	if len(X) == 0 || len(X) != len(y) {
		return nil, model.Kind(op, model.ErrData, "need a non-empty matrix with one label per row (rows=%d labels=%d)", len(X), len(y))
	}
	d := len(X[0])
	if d == 0 {
		return nil, model.Kind(op, model.ErrData, "matrix has no columns")
	}
	var pos int
	for _, v := range y {
		if v != 0 && v != 1 {
			return nil, model.Kind(op, model.ErrData, "label %d is not binary", v)
		}
		pos += v
	}
	if pos == 0 || pos == len(y) {
		return nil, model.Kind(op, model.ErrData, "training labels contain a single class")
	}

	mtry := p.MaxFeatures
	if mtry == 0 || mtry > d {
		mtry = max(1, int(math.Sqrt(float64(d))))
	}

	f := &Forest{Params: p, NumFeatures: d, Trees: make([]Tree, p.Trees)}
	imps := make([][]float64, p.Trees)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(p.Workers, p.Trees); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				b := &builder{
					X: X, y: y, d: d, mtry: mtry,
					maxDepth: p.MaxDepth, minSplit: p.MinSamplesSplit,
					rng: rand.New(rand.NewPCG(uint64(p.Seed), uint64(t))),
					imp: make([]float64, d),
				}
				f.Trees[t] = b.fit(len(y))
				imps[t] = b.imp
			}
		}()
	}

	var err error
feed:
	for t := 0; t < p.Trees; t++ {
		select {
		case jobs <- t:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, model.Wrap(op, model.ErrData, err)
	}

	f.Importances = make([]float64, d)
	for _, ti := range imps {
		if s := sum(ti); s > 0 {
			for j, v := range ti {
				f.Importances[j] += v / s
			}
		}
	}
	normalize(f.Importances)
	return f, nil
}

// Proba returns the probability of the positive class.
func (f *Forest) Proba(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var s float64
	for i := range f.Trees {
		s += f.Trees[i].prob(x)
	}
	return s / float64(len(f.Trees))
}

// Predict returns the predicted class and its probability.
func (f *Forest) Predict(x []float64) (class int, confidence float64) {
	p := f.Proba(x)
	if p > 0.5 {
		return 1, p
	}
	return 0, 1 - p
}

// Accuracy is the share of rows predicted correctly.
func (f *Forest) Accuracy(X [][]float64, y []int) float64 {
	if len(X) == 0 {
		return 0
	}
	var hit int
	for i, x := range X {
		if c, _ := f.Predict(x); c == y[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(X))
}

type builder struct {
	X        [][]float64
	y        []int
	d        int
	mtry     int
	maxDepth int
	minSplit int
	rng      *rand.Rand
	nodes    []Node
	imp      []float64
	total    float64
	buf      []int
}

func (b *builder) fit(n int) Tree {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = b.rng.IntN(n)
	}
	b.total = float64(n)
	b.buf = make([]int, n)
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

// weightedGini is n times the Gini impurity of a binary node.
func weightedGini(n, pos float64) float64 {
	if n == 0 {
		return 0
	}
	return 2 * pos * (n - pos) / n
}

func (b *builder) grow(idx []int, depth int) int32 {
	n := len(idx)
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Leaf: true, Prob: float64(pos) / float64(n)})

	if depth >= b.maxDepth || n < b.minSplit || pos == 0 || pos == n {
		return id
	}
	feat, thr, gain, ok := b.bestSplit(idx, pos)
	if !ok {
		return id
	}

	// Partition in place: left holds x <= thr.
	l := 0
	for r := 0; r < n; r++ {
		if b.X[idx[r]][feat] <= thr {
			idx[l], idx[r] = idx[r], idx[l]
			l++
		}
	}
	b.imp[feat] += gain / b.total

	left := b.grow(idx[:l], depth+1)
	right := b.grow(idx[l:], depth+1)
	b.nodes[id] = Node{Feature: feat, Threshold: thr, Left: left, Right: right, Prob: b.nodes[id].Prob}
	return id
}

func (b *builder) bestSplit(idx []int, pos int) (feat int, thr, gain float64, ok bool) {
	n := float64(len(idx))
	parent := weightedGini(n, float64(pos))
	best := parent
	sorted := b.buf[:len(idx)]

	for _, f := range b.rng.Perm(b.d)[:b.mtry] {
		copy(sorted, idx)
		sort.Slice(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })

		var ln, lp float64
		for k := 0; k < len(sorted)-1; k++ {
			ln++
			lp += float64(b.y[sorted[k]])
			v, next := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if v == next {
				continue
			}
			g := weightedGini(ln, lp) + weightedGini(n-ln, float64(pos)-lp)
			if g < best-1e-12 {
				best, feat, thr, ok = g, f, v+(next-v)/2, true
			}
		}
	}
	return feat, thr, parent - best, ok
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func normalize(xs []float64) {
	s := sum(xs)
	if s == 0 {
		return
	}
	for i := range xs {
		xs[i] /= s
	}
}
