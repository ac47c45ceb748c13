package media

import (
	"errors"
	"fmt"
)

// Sentinel errors for the clip pipeline.
var (
	// ErrNoFrames is returned when a clip decodes to zero frames.
	ErrNoFrames = errors.New("clip contains no frames")

	// ErrEmptySequence is returned when selection is attempted on an empty
	// frame sequence. Given DecodeError's guarantee this indicates a
	// programming error in the caller.
	ErrEmptySequence = errors.New("frame sequence is empty")
)

// DecodeError reports that a media blob could not be decoded into frames.
// It aborts only the current request.
type DecodeError struct {
	// MIME is the offending type hint as supplied by the client.
	MIME string

	// Reason is a short human-readable description.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.MIME != "" {
		return fmt.Sprintf("decode %q: %s", e.MIME, e.Reason)
	}
	return "decode: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// EncodeError reports that a selected frame could not be encoded.
// It is fatal to the current request only and is never retried.
type EncodeError struct {
	// Reason is a short human-readable description.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return "encode frame: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Cause
}
