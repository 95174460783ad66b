package repository

import (
	"time"

	"github.com/okian/kudos/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock sets the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
