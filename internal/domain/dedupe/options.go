package dedupe

import "time"

// Option applies a configuration option to the in-memory deduper.
type Option func(*memoryDeduper)

// WithMaxSize bounds the number of remembered ids. Values <= 0 disable the bound.
func WithMaxSize(maxSize int) Option {
	return func(d *memoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithTTL forgets ids older than ttl, letting a run id be reused later.
func WithTTL(ttl time.Duration) Option {
	return func(d *memoryDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *memoryDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
