// Package dataset assembles the encoded design matrix for a set of seasons.
package dataset

import (
	"context"
	"math/rand/v2"

	"github.com/okian/puckcast/internal/domain/encoding"
	"github.com/okian/puckcast/internal/domain/features"
	"github.com/okian/puckcast/internal/domain/model"
)

// Default split parameters.
const (
	DefaultValidationRatio = 0.2
	DefaultSplitSeed       = 31
)

// GameSource is the read side of the game repository the builder needs.
type GameSource interface {
	// GamesBySeasons returns games of the given seasons with both snapshot
	// references loaded where present.
	GamesBySeasons(ctx context.Context, seasons []int) ([]*model.Game, error)
	// ParticipatingFranchises returns every franchise that has played in a
	// stored game.
	ParticipatingFranchises(ctx context.Context) ([]int, error)
}

// Dataset is an encoded matrix with one label per row.
type Dataset struct {
	Seasons []int
	Games   []*model.Game
	Rows    []features.Row
	Matrix  encoding.Matrix
	Labels  []int
	Encoder *encoding.Encoder
}

// Len is the number of rows.
func (d *Dataset) Len() int { return len(d.Labels) }

// Builder builds datasets against a fixed vocabulary.
type Builder struct {
	games GameSource
	opts  []encoding.Option
}

// NewBuilder creates a Builder. Encoder options apply to every encoder it makes.
func NewBuilder(games GameSource, opts ...encoding.Option) *Builder {
	return &Builder{games: games, opts: opts}
}

// Vocabulary queries the participating franchises once.
func (b *Builder) Vocabulary(ctx context.Context) (encoding.Vocabulary, error) {
	const op = "dataset.Vocabulary"
	ids, err := b.games.ParticipatingFranchises(ctx)
	if err != nil {
		return encoding.Vocabulary{}, model.Wrap(op, model.ErrStorage, err)
	}
	return encoding.NewVocabulary(ids), nil
}

// Build collects every decided game of seasons with both snapshots and
// encodes it. Games lacking a snapshot are excluded, not imputed.
func (b *Builder) Build(ctx context.Context, seasons []int) (*Dataset, error) {
	vocab, err := b.Vocabulary(ctx)
	if err != nil {
		return nil, err
	}
	return b.BuildWith(ctx, seasons, vocab)
}

// BuildWith is Build against a known vocabulary, e.g. one stored with a model.
func (b *Builder) BuildWith(ctx context.Context, seasons []int, vocab encoding.Vocabulary) (*Dataset, error) {
	const op = "dataset.Build"
	games, err := b.games.GamesBySeasons(ctx, seasons)
	if err != nil {
		return nil, model.Wrap(op, model.ErrStorage, err)
	}

	ds := &Dataset{Seasons: append([]int(nil), seasons...), Encoder: encoding.NewEncoder(vocab, b.opts...)}
	for _, g := range games {
		if !g.Decided() || !g.HasSnapshots() {
			continue
		}
		row, err := features.Extract(g)
		if err != nil {
			continue
		}
		ds.Games = append(ds.Games, g)
		ds.Rows = append(ds.Rows, row)
		ds.Labels = append(ds.Labels, row.Target())
	}
	ds.Matrix = ds.Encoder.Encode(ds.Rows)
	return ds, nil
}

// Split is a train/validation partition of a dataset.
type Split struct {
	TrainX [][]float64
	TrainY []int
	ValidX [][]float64
	ValidY []int
}

// Split shuffles rows with seed and holds out the last ratio share. The
// validation part keeps at least one row whenever the dataset has two.
func (d *Dataset) Split(ratio float64, seed int64) Split {
	n := d.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	r := rand.New(rand.NewPCG(uint64(seed), 0))
	r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nv := int(float64(n)*ratio + 0.5)
	if nv == 0 && n >= 2 && ratio > 0 {
		nv = 1
	}
	nt := n - nv

	var s Split
	for k, i := range idx {
		if k < nt {
			s.TrainX = append(s.TrainX, d.Matrix.Rows[i])
			s.TrainY = append(s.TrainY, d.Labels[i])
		} else {
			s.ValidX = append(s.ValidX, d.Matrix.Rows[i])
			s.ValidY = append(s.ValidY, d.Labels[i])
		}
	}
	return s
}
