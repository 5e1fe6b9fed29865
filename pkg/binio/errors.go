package binio

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedLength        = errors.New("binio: malformed length")
	ErrTruncated              = errors.New("binio: truncated data")
	ErrLengthLimitExceeded    = errors.New("binio: length limit exceeded")
	ErrInvalidBooleanEncoding = errors.New("binio: invalid boolean encoding")
	ErrSizeOverflow           = errors.New("binio: size overflow")
	ErrNilString              = errors.New("binio: nil string")
)

// OffsetError records where in the input a primitive failed.
// errors.Is matches the wrapped sentinel.
type OffsetError struct {
	Offset int
	Field  string
	Err    error
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *OffsetError) Unwrap() error {
	return e.Err
}
