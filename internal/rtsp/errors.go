package rtsp

import (
	"errors"
	"fmt"
)

// Sentinel errors for negotiation payload decoding. A SETUP carrying any
// of these is rejected before a stream is started; none of them are
// retried or defaulted.
var (
	ErrNotDictionary = errors.New("rtsp: expected a dictionary payload")
	ErrMissingType   = errors.New("rtsp: stream request missing type field")
	ErrInvalidType   = errors.New("rtsp: stream request type must be an unsigned integer")
)

// MissingFieldError reports a mandatory negotiation field absent from
// the wire dictionary.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("rtsp: missing required field %q", e.Field)
}

// UnknownStreamTypeError reports a stream type tag outside the
// negotiated set (96, 103, 110), naming the offending value.
type UnknownStreamTypeError struct {
	Type uint64
}

func (e *UnknownStreamTypeError) Error() string {
	return fmt.Sprintf("rtsp: unknown stream type %d", e.Type)
}
