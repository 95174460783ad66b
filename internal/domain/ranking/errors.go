package ranking

import "errors"

// ErrInvalidMetric is returned for an unknown board name.
var ErrInvalidMetric = errors.New("invalid leaderboard metric")
