package dedupe

// Option configures the deduper built by NewInMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds how many submission keys are remembered across all
// matches. The oldest key is forgotten first; a retry arriving after that
// is treated as a new submission. Zero or less remembers every key.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = n
	}
}
