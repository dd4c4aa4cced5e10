// Package encoding expands categorical features into one-hot columns over a
// fixed vocabulary so training and inference matrices share one shape.
package encoding

import (
	"sort"
	"strconv"
	"strings"

	"github.com/okian/puckcast/internal/domain/features"
	"github.com/okian/puckcast/internal/domain/model"
)

// Vocabulary lists the levels of every categorical feature. Franchise ids
// come from stored games; calendar and game-type levels are fixed.
type Vocabulary struct {
	Franchises []int
	GameTypes  []int
	Weekdays   []int
	Months     []int
}

// NewVocabulary builds the vocabulary for the given participating franchises.
func NewVocabulary(franchises []int) Vocabulary {
	f := append([]int(nil), franchises...)
	sort.Ints(f)
	f = dedupe(f)

	v := Vocabulary{Franchises: f}
	for _, t := range model.GameTypes {
		v.GameTypes = append(v.GameTypes, int(t))
	}
	for d := 0; d < 7; d++ {
		v.Weekdays = append(v.Weekdays, d)
	}
	for m := 1; m <= 12; m++ {
		v.Months = append(v.Months, m)
	}
	return v
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for i, x := range sorted {
		if i == 0 || x != sorted[i-1] {
			out = append(out, x)
		}
	}
	return out
}

// Levels returns the vocabulary for one categorical feature.
func (v Vocabulary) Levels(feature string) []int {
	switch feature {
	case features.HomeTeam, features.AwayTeam:
		return v.Franchises
	case features.GameType:
		return v.GameTypes
	case features.GameDayOfWeek:
		return v.Weekdays
	case features.GameMonth:
		return v.Months
	default:
		return nil
	}
}

// Column names a one-hot column.
func Column(feature string, level int) string {
	return feature + "_" + strconv.Itoa(level)
}

// Matrix is an encoded, column-named design matrix.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithUnseenHook is called for every categorical level missing from the
// vocabulary. Such levels produce no column.
func WithUnseenHook(fn func(feature string, level int)) Option {
	return func(e *Encoder) { e.onUnseen = fn }
}

// Encoder maps feature rows onto a fixed, lexicographically sorted column set.
type Encoder struct {
	vocab    Vocabulary
	columns  []string
	index    map[string]int
	onUnseen func(feature string, level int)
}

// NewEncoder fixes the column set from vocab.
func NewEncoder(vocab Vocabulary, opts ...Option) *Encoder {
	e := &Encoder{vocab: vocab}
	for _, opt := range opts {
		opt(e)
	}

	for _, f := range features.CategoricalNames() {
		for _, lvl := range vocab.Levels(f) {
			e.columns = append(e.columns, Column(f, lvl))
		}
	}
	e.columns = append(e.columns, features.NumericNames()...)
	sort.Strings(e.columns)

	e.index = make(map[string]int, len(e.columns))
	for i, c := range e.columns {
		e.index[c] = i
	}
	return e
}

// Vocabulary returns the vocabulary the encoder was built from.
func (e *Encoder) Vocabulary() Vocabulary { return e.vocab }

// Columns returns a copy of the encoded column names.
func (e *Encoder) Columns() []string { return append([]string(nil), e.columns...) }

// Index returns the position of a column.
func (e *Encoder) Index(col string) (int, bool) {
	i, ok := e.index[col]
	return i, ok
}

// EncodeRow encodes one row. Absent columns are zero.
func (e *Encoder) EncodeRow(r features.Row) []float64 {
	vec := make([]float64, len(e.columns))
	for _, f := range features.CategoricalNames() {
		lvl, ok := r.Categorical[f]
		if !ok {
			continue
		}
		i, ok := e.index[Column(f, lvl)]
		if !ok {
			if e.onUnseen != nil {
				e.onUnseen(f, lvl)
			}
			continue
		}
		vec[i] = 1
	}
	for name, v := range r.Numeric {
		if i, ok := e.index[name]; ok {
			vec[i] = v
		}
	}
	return vec
}

// Encode encodes a batch of rows.
func (e *Encoder) Encode(rows []features.Row) Matrix {
	m := Matrix{Columns: e.Columns(), Rows: make([][]float64, len(rows))}
	for i, r := range rows {
		m.Rows[i] = e.EncodeRow(r)
	}
	return m
}

// Family splits a one-hot column into its categorical feature and level.
func Family(col string) (feature string, level int, ok bool) {
	for _, f := range features.CategoricalNames() {
		rest, found := strings.CutPrefix(col, f+"_")
		if !found {
			continue
		}
		lvl, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		return f, lvl, true
	}
	return "", 0, false
}
