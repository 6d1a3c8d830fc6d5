package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrPruneFailed wraps a failed retention pass
	ErrPruneFailed = errors.New("sync run pruning failed")
)
