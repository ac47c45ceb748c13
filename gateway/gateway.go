// Package gateway provides a uniform interface to the remote inference
// backend: image recognition, obstacle detection, speech transcription, and
// multimodal speech synthesis.
//
// Implementations are stateless after construction and safe for concurrent
// reuse across sessions. The orchestrator treats any non-success status as a
// hard failure for that call; retries, if any, belong to the implementation's
// own transport concerns.
package gateway

import "context"

// Concept is a recognized label with its confidence value.
// Value is rounded to 4 decimal places; the rounding is part of the
// observable contract.
type Concept struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// BoundingBox is a detection region in normalized image coordinates.
// Fields are rounded to 3 decimal places as part of the observable contract.
type BoundingBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

// Region is one detected area with the concepts found inside it.
type Region struct {
	Box      BoundingBox `json:"box"`
	Concepts []Concept   `json:"concepts"`
}

// Service is the inference gateway consumed by the orchestrator.
type Service interface {
	// Name returns the provider identifier (for logging/debugging).
	Name() string

	// Recognize identifies concepts in an encoded image.
	Recognize(ctx context.Context, image []byte) ([]Concept, error)

	// Detect locates labeled regions in an encoded image.
	Detect(ctx context.Context, image []byte) ([]Region, error)

	// Transcribe converts an audio payload to text.
	Transcribe(ctx context.Context, audio []byte) (string, error)

	// Synthesize answers a prompt about an image with synthesized speech.
	Synthesize(ctx context.Context, prompt string, image []byte) ([]byte, error)
}
