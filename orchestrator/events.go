package orchestrator

import "time"

// Outbound event names, part of the client contract.
const (
	EventRecognition = "recognition"
	EventDetection   = "detection"
	EventNoAudio     = "no-audio"
	EventLongAudio   = "long-audio"
	EventShortAudio  = "short-audio"
	EventText        = "text"
	EventAudio       = "audio"
	EventAudioChunk  = "audio-chunk"
	EventAudioURL    = "audio-url"
)

// OutputType selects how a query answer is delivered.
type OutputType string

// Supported output types.
const (
	OutputAudio OutputType = "audio"
	OutputChunk OutputType = "chunk"
	OutputText  OutputType = "text"
	OutputURL   OutputType = "url"
)

// ParseOutputType maps the wire string to an OutputType, defaulting to
// OutputAudio for empty or unknown values.
func ParseOutputType(s string) OutputType {
	switch OutputType(s) {
	case OutputChunk, OutputText, OutputURL:
		return OutputType(s)
	default:
		return OutputAudio
	}
}

// Transcript gating bounds and chunked-delivery parameters. These are
// contract values, not configuration.
const (
	minTranscriptRunes = 10
	maxTranscriptRunes = 500

	chunkSize  = 1024
	chunkPause = 100 * time.Millisecond
)
