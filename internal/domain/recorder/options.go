package recorder

import "time"

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithClock sets the time source used to stamp events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}
