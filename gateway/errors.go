package gateway

import "fmt"

// PredictionError reports a remote inference call that returned a non-success
// status. It carries the provider-side code and description so failures can
// be diagnosed without provider log access.
type PredictionError struct {
	// Provider is the inference provider name.
	Provider string

	// Call is the logical call that failed ("recognize", "transcribe", ...).
	Call string

	// StatusCode is the HTTP status of the response, if one was received.
	StatusCode int

	// Code is the provider-side status code.
	Code int

	// Description is the provider-side status description.
	Description string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *PredictionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s %s failed [%d]: %s", e.Provider, e.Call, e.Code, e.Description)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Call, e.Description)
}

// Unwrap returns the underlying error.
func (e *PredictionError) Unwrap() error {
	return e.Cause
}
