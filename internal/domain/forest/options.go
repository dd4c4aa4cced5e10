package forest

// Option configures Fit.
type Option func(*Params)

// WithTrees sets the number of trees.
func WithTrees(n int) Option {
	return func(p *Params) {
		if n > 0 {
			p.Trees = n
		}
	}
}

// WithMaxDepth bounds tree depth.
func WithMaxDepth(d int) Option {
	return func(p *Params) {
		if d > 0 {
			p.MaxDepth = d
		}
	}
}

// WithSeed fixes the random seed.
func WithSeed(seed int64) Option {
	return func(p *Params) { p.Seed = seed }
}

// WithMaxFeatures sets the number of candidate features per split.
// Zero means sqrt of the column count.
func WithMaxFeatures(n int) Option {
	return func(p *Params) {
		if n >= 0 {
			p.MaxFeatures = n
		}
	}
}

// WithMinSamplesSplit sets the smallest node that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) {
		if n >= 2 {
			p.MinSamplesSplit = n
		}
	}
}

// WithWorkers bounds fitting parallelism.
func WithWorkers(n int) Option {
	return func(p *Params) {
		if n > 0 {
			p.Workers = n
		}
	}
}
