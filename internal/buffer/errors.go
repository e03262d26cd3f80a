package buffer

import "errors"

var (
	// ErrFormat is returned when a View does not describe the expected layout:
	// wrong element type, rank, shape or strides.
	ErrFormat = errors.New("buffer: incompatible format")
	// ErrDimensionMismatch reports arithmetic between amounts of different lengths.
	ErrDimensionMismatch = errors.New("buffer: dimension mismatch")
	// ErrOutOfRange reports an index outside a matrix or amount.
	ErrOutOfRange = errors.New("buffer: index out of range")
)
