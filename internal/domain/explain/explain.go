// Package explain produces local surrogate explanations: it perturbs one
// encoded instance in quartile-bin space, weights the neighbourhood by
// distance, and fits a weighted ridge model to the classifier's output.
package explain

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/puckcast/internal/domain/model"
)

// Condition is one weighted term of a local explanation.
type Condition struct {
	Column int
	Text   string
	Weight float64
}

// Explainer holds the reference distribution of the training matrix.
type Explainer struct {
	columns     []string
	disc        []quartiles
	scale       []float64
	samples     int
	seed        int64
	features    int
	kernelWidth float64
}

// New fits the discretizers on the training matrix.
func New(training [][]float64, columns []string, opts ...Option) (*Explainer, error) {
	const op = "explain.New"
	if len(training) == 0 {
		return nil, model.Kind(op, model.ErrData, "empty reference matrix")
	}
	if len(training[0]) != len(columns) {
		return nil, model.Kind(op, model.ErrData, "matrix has %d columns, names has %d", len(training[0]), len(columns))
	}

	e := &Explainer{
		columns:     append([]string(nil), columns...),
		samples:     DefaultSamples,
		seed:        DefaultSeed,
		features:    DefaultFeatures,
		kernelWidth: 0.75 * math.Sqrt(float64(len(columns))),
	}
	for _, opt := range opts {
		opt(e)
	}

	col := make([]float64, len(training))
	bins := make([]float64, len(training))
	e.disc = make([]quartiles, len(columns))
	e.scale = make([]float64, len(columns))
	for j, name := range columns {
		for i, row := range training {
			col[i] = row[j]
		}
		e.disc[j] = newQuartiles(name, col)
		for i, v := range col {
			bins[i] = float64(e.disc[j].bin(v))
		}
		_, sd := stat.PopMeanStdDev(bins, nil)
		if sd == 0 {
			sd = 1
		}
		e.scale[j] = sd
	}
	return e, nil
}

// Columns returns the encoded column names.
func (e *Explainer) Columns() []string { return append([]string(nil), e.columns...) }

// Explain returns up to WithFeatures conditions for instance, ordered by
// descending absolute weight. proba must return the positive-class
// probability. The same instance and classifier always yield the same result.
func (e *Explainer) Explain(ctx context.Context, instance []float64, proba func([]float64) float64) ([]Condition, error) {
	const op = "explain.Explain"
	d := len(e.columns)
	if len(instance) != d {
		return nil, model.Kind(op, model.ErrData, "instance has %d columns, want %d", len(instance), d)
	}

	rng := rand.New(rand.NewPCG(uint64(e.seed), 0))
	n := e.samples

	home := make([]int, d)
	for j := range home {
		home[j] = e.disc[j].bin(instance[j])
	}

	binary := mat.NewDense(n, d, nil)
	target := make([]float64, n)
	weights := make([]float64, n)
	x := make([]float64, d)
	for i := 0; i < n; i++ {
		if i%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, model.Wrap(op, model.ErrData, err)
			}
		}
		var dist float64
		for j := 0; j < d; j++ {
			if i == 0 {
				x[j] = instance[j]
				binary.Set(i, j, 1)
				continue
			}
			b := e.disc[j].draw(rng.Float64())
			x[j] = e.disc[j].value(b, rng.NormFloat64())
			if b == home[j] {
				binary.Set(i, j, 1)
			} else {
				dist += 1 / (e.scale[j] * e.scale[j])
			}
		}
		target[i] = proba(x)
		weights[i] = math.Sqrt(math.Exp(-dist / (e.kernelWidth * e.kernelWidth)))
	}

	selected := e.selectFeatures(binary, target, weights)
	if len(selected) == 0 {
		return nil, nil
	}

	sub := mat.NewDense(n, len(selected), nil)
	for i := 0; i < n; i++ {
		for k, j := range selected {
			sub.Set(i, k, binary.At(i, j))
		}
	}
	coef, err := weightedRidge(sub, target, weights, surrogateAlpha)
	if err != nil {
		return nil, model.Wrap(op, model.ErrData, err)
	}

	out := make([]Condition, len(selected))
	for k, j := range selected {
		out[k] = Condition{Column: j, Text: e.disc[j].names[home[j]], Weight: coef[k]}
	}
	sort.SliceStable(out, func(a, b int) bool { return math.Abs(out[a].Weight) > math.Abs(out[b].Weight) })
	return out, nil
}

// selectFeatures keeps the columns with the largest |coef * instance| of a
// lightly regularized weighted ridge over every column.
func (e *Explainer) selectFeatures(binary *mat.Dense, target, weights []float64) []int {
	_, d := binary.Dims()
	if d <= e.features {
		all := make([]int, d)
		for j := range all {
			all[j] = j
		}
		return all
	}
	coef, err := weightedRidge(binary, target, weights, selectionAlpha)
	if err != nil {
		return nil
	}
	idx := make([]int, d)
	for j := range idx {
		idx[j] = j
	}
	// Row 0 of the binary matrix is all ones.
	sort.SliceStable(idx, func(a, b int) bool { return math.Abs(coef[idx[a]]) > math.Abs(coef[idx[b]]) })
	sel := append([]int(nil), idx[:e.features]...)
	sort.Ints(sel)
	return sel
}

// weightedRidge solves min sum w_i (y_i - b - x_i.beta)^2 + alpha |beta|^2
// with an unpenalized intercept and returns beta.
func weightedRidge(X *mat.Dense, y, w []float64, alpha float64) ([]float64, error) {
	n, d := X.Dims()
	var sw float64
	for _, v := range w {
		sw += v
	}
	if sw == 0 {
		sw = 1
	}

	xm := make([]float64, d)
	var ym float64
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			xm[j] += w[i] * X.At(i, j)
		}
		ym += w[i] * y[i]
	}
	for j := range xm {
		xm[j] /= sw
	}
	ym /= sw

	A := mat.NewDense(n, d, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sq := math.Sqrt(w[i])
		for j := 0; j < d; j++ {
			A.Set(i, j, sq*(X.At(i, j)-xm[j]))
		}
		b.SetVec(i, sq*(y[i]-ym))
	}

	var ata mat.Dense
	ata.Mul(A.T(), A)
	gram := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			v := ata.At(i, j)
			if i == j {
				v += alpha
			}
			gram.SetSym(i, j, v)
		}
	}
	var atb mat.VecDense
	atb.MulVec(A.T(), b)

	var chol mat.Cholesky
	var beta mat.VecDense
	if ok := chol.Factorize(gram); ok {
		if err := chol.SolveVecTo(&beta, &atb); err != nil {
			return nil, err
		}
	} else if err := beta.SolveVec(gram, &atb); err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, &beta), nil
}
