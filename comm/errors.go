package comm

import "errors"

var (
	// ErrClosed is returned once the channel has been closed.
	ErrClosed = errors.New("channel closed")

	// ErrUnknownEndpoint is returned when no endpoint is attached for a PID.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrRequestOutstanding is returned when a worker sends a request before
	// receiving the response to the previous one.
	ErrRequestOutstanding = errors.New("request outstanding")
)
