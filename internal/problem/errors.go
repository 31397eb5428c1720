package problem

import "errors"

var (
	// ErrOutOfRange is returned when a location id is not part of the matrix.
	ErrOutOfRange = errors.New("matrix lookup out of range")
	// ErrInfinity is returned when a required matrix cell is missing or infinite.
	ErrInfinity = errors.New("matrix contains an infinite cost")
	// ErrInvalidInput marks order, vehicle or matrix records the solver cannot use.
	ErrInvalidInput = errors.New("invalid problem input")
)
