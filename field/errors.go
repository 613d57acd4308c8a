package field

import "errors"

var (
	// ErrBadWidth is returned for zero or negative grid widths.
	ErrBadWidth = errors.New("field: grid width must be positive")
	// ErrLengthMismatch is returned when a value slice does not hold width*width elements.
	ErrLengthMismatch = errors.New("field: value count does not match width*width")
	// ErrCountRange is returned when a segment count exceeds its capacity.
	ErrCountRange = errors.New("field: segment count out of range")
)
