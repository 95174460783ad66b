package api

import "github.com/okian/kudos/pkg/logger"

type options struct {
	logger logger.Logger
}

// Option configures the API server.
type Option func(*options)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
