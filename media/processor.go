package media

import (
	"context"
	"time"

	"github.com/sightline-ai/sightline/logger"
	"github.com/sightline-ai/sightline/metrics"
)

// Processor composes decode, sharpness selection, and encoding into the
// per-request clip pipeline. It is stateless after construction and safe
// for concurrent use across sessions.
type Processor struct {
	decoder *Decoder
	pool    *Pool
}

// NewProcessor creates a clip processor using the given decoder and worker pool.
func NewProcessor(decoder *Decoder, pool *Pool) *Processor {
	return &Processor{decoder: decoder, pool: pool}
}

// SelectBestFrame decodes a clip and returns its sharpest frame.
// All CPU-bound steps run under the worker pool.
func (p *Processor) SelectBestFrame(ctx context.Context, blob MediaBlob) (Frame, error) {
	var best Frame

	err := p.pool.Run(ctx, func() error {
		ctx, end := logger.StartSpan(ctx, "frame selection")
		defer end()

		decodeStart := time.Now()
		frames, err := p.decoder.Decode(ctx, blob)
		metrics.RecordStageDuration("decode", time.Since(decodeStart).Seconds())
		if err != nil {
			return err
		}
		logger.DebugContext(ctx, "Decoded clip",
			"frames", len(frames),
			"width", frames[0].Width,
			"height", frames[0].Height,
		)

		start := time.Now()
		defer func() { metrics.RecordStageDuration("select", time.Since(start).Seconds()) }()

		grays, err := Grayscale(ctx, frames)
		if err != nil {
			return err
		}
		index, err := SelectSharpest(grays)
		if err != nil {
			return err
		}
		best = frames[index]
		return nil
	})
	return best, err
}

// SelectBestStill picks the sharpest of a set of still images.
// The selection metric and tie-breaking match SelectBestFrame.
func (p *Processor) SelectBestStill(ctx context.Context, images [][]byte) (Frame, error) {
	var best Frame

	err := p.pool.Run(ctx, func() error {
		ctx, end := logger.StartSpan(ctx, "still selection")
		defer end()

		if len(images) == 0 {
			return &DecodeError{Reason: "no images supplied"}
		}
		frames := make(FrameSequence, 0, len(images))
		for _, data := range images {
			frame, err := DecodeStill(data)
			if err != nil {
				return err
			}
			frames = append(frames, frame)
		}

		grays, err := Grayscale(ctx, frames)
		if err != nil {
			return err
		}
		index, err := SelectSharpest(grays)
		if err != nil {
			return err
		}
		best = frames[index]
		return nil
	})
	return best, err
}

// Encode converts the selected frame to PNG bytes under the worker pool.
func (p *Processor) Encode(ctx context.Context, frame Frame) ([]byte, error) {
	var encoded []byte

	err := p.pool.Run(ctx, func() error {
		_, end := logger.StartSpan(ctx, "frame encoding")
		defer end()
		start := time.Now()
		defer func() { metrics.RecordStageDuration("encode", time.Since(start).Seconds()) }()

		var encodeErr error
		encoded, encodeErr = EncodePNG(frame)
		return encodeErr
	})
	return encoded, err
}
