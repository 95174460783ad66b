package config

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrInvalidConfig marks a setting that failed Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidRules marks a point rule setting; it always travels with
	// ErrInvalidConfig.
	ErrInvalidRules = errors.New("invalid point rules")
	// ErrLoadConfig marks a file or environment source that could not be read.
	ErrLoadConfig = errors.New("load config failed")
)
