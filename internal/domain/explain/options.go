package explain

// Defaults for the tabular explainer.
const (
	DefaultSamples  = 5000
	DefaultSeed     = 42
	DefaultFeatures = 10
	DefaultTopK     = 5

	selectionAlpha = 0.01
	surrogateAlpha = 1.0
)

// Option configures an Explainer.
type Option func(*Explainer)

// WithSamples sets the neighbourhood size. Row 0 is always the instance.
func WithSamples(n int) Option {
	return func(e *Explainer) {
		if n > 1 {
			e.samples = n
		}
	}
}

// WithSeed fixes the sampling seed.
func WithSeed(seed int64) Option {
	return func(e *Explainer) { e.seed = seed }
}

// WithFeatures bounds how many encoded columns the surrogate may use.
func WithFeatures(n int) Option {
	return func(e *Explainer) {
		if n > 0 {
			e.features = n
		}
	}
}

// WithKernelWidth overrides the default 0.75*sqrt(columns) width.
func WithKernelWidth(w float64) Option {
	return func(e *Explainer) {
		if w > 0 {
			e.kernelWidth = w
		}
	}
}
