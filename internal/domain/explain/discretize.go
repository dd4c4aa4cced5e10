package explain

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// quartiles bins one column at its distinct 25/50/75 percentiles.
type quartiles struct {
	bounds []float64
	names  []string
	freq   []float64
	mean   []float64
	std    []float64
	lo     []float64
	hi     []float64
}

func newQuartiles(name string, col []float64) quartiles {
	sorted := append([]float64(nil), col...)
	sort.Float64s(sorted)

	var q quartiles
	for _, p := range []float64{0.25, 0.5, 0.75} {
		v := stat.Quantile(p, stat.LinInterp, sorted, nil)
		if len(q.bounds) == 0 || v != q.bounds[len(q.bounds)-1] {
			q.bounds = append(q.bounds, v)
		}
	}

	nb := len(q.bounds) + 1
	q.names = make([]string, nb)
	q.names[0] = fmt.Sprintf("%s <= %.2f", name, q.bounds[0])
	for i := 1; i < len(q.bounds); i++ {
		q.names[i] = fmt.Sprintf("%.2f < %s <= %.2f", q.bounds[i-1], name, q.bounds[i])
	}
	q.names[nb-1] = fmt.Sprintf("%s > %.2f", name, q.bounds[len(q.bounds)-1])

	members := make([][]float64, nb)
	for _, v := range col {
		b := q.bin(v)
		members[b] = append(members[b], v)
	}
	q.freq = make([]float64, nb)
	q.mean = make([]float64, nb)
	q.std = make([]float64, nb)
	q.lo = make([]float64, nb)
	q.hi = make([]float64, nb)
	for b := range members {
		q.freq[b] = float64(len(members[b])) / float64(len(col))
		if len(members[b]) > 0 {
			q.mean[b], q.std[b] = stat.PopMeanStdDev(members[b], nil)
		}
	}
	q.lo[0], q.hi[nb-1] = sorted[0], sorted[len(sorted)-1]
	for b := 1; b < nb; b++ {
		q.lo[b] = q.bounds[b-1]
	}
	for b := 0; b < nb-1; b++ {
		q.hi[b] = q.bounds[b]
	}
	return q
}

// bin is the left-insertion index of v in the bounds.
func (q quartiles) bin(v float64) int {
	return sort.SearchFloat64s(q.bounds, v)
}

// draw picks a bin index by training frequency.
func (q quartiles) draw(u float64) int {
	var acc float64
	for b, f := range q.freq {
		acc += f
		if u < acc {
			return b
		}
	}
	return len(q.freq) - 1
}

// value draws a concrete value inside bin b from a normal clamped to the bin.
func (q quartiles) value(b int, z float64) float64 {
	if q.std[b] == 0 {
		return q.mean[b]
	}
	v := q.mean[b] + q.std[b]*z
	return min(max(v, q.lo[b]), q.hi[b])
}
