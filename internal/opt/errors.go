package opt

import "errors"

var (
	// ErrInconsistent means a solution broke a route invariant. It is never expected
	// and is returned instead of a bad solution.
	ErrInconsistent = errors.New("solution failed verification")
	// ErrConfig is returned for solver options that cannot be used.
	ErrConfig = errors.New("invalid solver config")
	// ErrRows is returned when schedule rows cannot be mapped back onto a problem.
	ErrRows = errors.New("invalid schedule rows")
)
