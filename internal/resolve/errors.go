package resolve

import "errors"

var (
	// ErrInvalidUsage is returned when resolution is requested for
	// anything other than a single-key read.
	ErrInvalidUsage = errors.New("resolution requires a single-key read")

	// ErrInvalidThreshold is returned for thresholds below one.
	ErrInvalidThreshold = errors.New("thresholds must be at least 1")
)
