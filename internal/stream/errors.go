package stream

import "errors"

// Sentinel errors for processor and lifecycle failures.
var (
	// ErrMalformedStream reports a frame length the wire format cannot
	// produce: a buffered-audio length too small for the mandatory
	// header and trailer, or a video payload length beyond any real
	// frame. TCP framing cannot resynchronize after a mis-sized length,
	// so this is fatal to the connection.
	ErrMalformedStream = errors.New("stream: malformed frame length")

	// ErrAuthFailureLimit reports that buffered audio exceeded the
	// consecutive authentication-failure threshold, which indicates a
	// key mismatch rather than corruption of a single packet.
	ErrAuthFailureLimit = errors.New("stream: too many consecutive authentication failures")

	// ErrDuplicateStream reports a Start for a stream ID that is
	// already running.
	ErrDuplicateStream = errors.New("stream: stream id already active")
)
