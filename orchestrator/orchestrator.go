// Package orchestrator composes the frame pipeline, the inference gateway,
// and the session channel into the user-facing operations: recognize,
// detect, and query. Each operation runs in the context of one session and
// must never crash it; failures are logged and returned to the transport.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/sightline-ai/sightline/framecache"
	"github.com/sightline-ai/sightline/gateway"
	"github.com/sightline-ai/sightline/logger"
	"github.com/sightline-ai/sightline/media"
	"github.com/sightline-ai/sightline/metrics"
	"github.com/sightline-ai/sightline/session"
	"github.com/sightline-ai/sightline/storage"
)

// FrameSelector is the clip pipeline consumed by the orchestrator.
// *media.Processor is the production implementation.
type FrameSelector interface {
	SelectBestFrame(ctx context.Context, blob media.MediaBlob) (media.Frame, error)
	SelectBestStill(ctx context.Context, images [][]byte) (media.Frame, error)
	Encode(ctx context.Context, frame media.Frame) ([]byte, error)
}

// Config carries the orchestrator's interpretation settings.
type Config struct {
	Thresholds     Thresholds
	Obstacles      []string
	PromptTemplate string
}

// Orchestrator executes session operations. It holds no per-session state
// and is safe for concurrent use.
type Orchestrator struct {
	selector FrameSelector
	gateway  gateway.Service
	uploader storage.Uploader
	cache    framecache.Cache

	thresholds Thresholds
	obstacles  map[string]struct{}
	template   string

	// pause between the last data chunk and the empty sentinel;
	// overridable in tests.
	chunkPause time.Duration
}

// New wires an Orchestrator from its collaborators.
func New(selector FrameSelector, gw gateway.Service, uploader storage.Uploader,
	cache framecache.Cache, cfg Config) *Orchestrator {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds
	}
	return &Orchestrator{
		selector:   selector,
		gateway:    gw,
		uploader:   uploader,
		cache:      cache,
		thresholds: cfg.Thresholds,
		obstacles:  AllowSet(cfg.Obstacles),
		template:   cfg.PromptTemplate,
		chunkPause: chunkPause,
	}
}

// Recognize identifies concepts in the sharpest frame of a clip and emits a
// recognition event.
func (o *Orchestrator) Recognize(ctx context.Context, sess session.Channel, clip media.MediaBlob) error {
	ctx = o.operationContext(ctx, sess, "recognize")
	start := time.Now()

	err := o.recognize(ctx, sess, clip)
	metrics.RecordQuery("recognize", statusOf(err), time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) recognize(ctx context.Context, sess session.Channel, clip media.MediaBlob) error {
	png, err := o.selectAndEncode(ctx, sess, clip)
	if err != nil {
		logger.ErrorContext(ctx, "Clip processing failed", "error", err)
		return err
	}

	concepts, err := o.gateway.Recognize(ctx, png)
	if err != nil {
		logger.ErrorContext(ctx, "Recognition failed", "error", err)
		return err
	}

	return o.emit(ctx, sess, EventRecognition, concepts)
}

// Detect locates obstacles in the sharpest frame of a clip and emits a
// spoken warning sentence.
func (o *Orchestrator) Detect(ctx context.Context, sess session.Channel, clip media.MediaBlob) error {
	ctx = o.operationContext(ctx, sess, "detect")
	start := time.Now()

	err := o.detect(ctx, sess, clip)
	metrics.RecordQuery("detect", statusOf(err), time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) detect(ctx context.Context, sess session.Channel, clip media.MediaBlob) error {
	png, err := o.selectAndEncode(ctx, sess, clip)
	if err != nil {
		logger.ErrorContext(ctx, "Clip processing failed", "error", err)
		return err
	}

	regions, err := o.gateway.Detect(ctx, png)
	if err != nil {
		logger.ErrorContext(ctx, "Detection failed", "error", err)
		return err
	}

	observations := Interpret(regions, o.thresholds, o.obstacles)
	logger.DebugContext(ctx, "Interpreted detections",
		"regions", len(regions), "obstacles", len(observations))

	return o.emit(ctx, sess, EventDetection, WarningSentence(observations))
}

// Query answers a spoken question about a clip. The clip pipeline and the
// transcription run concurrently; the transcript is gated before any
// synthesis call is issued.
func (o *Orchestrator) Query(ctx context.Context, sess session.Channel,
	audio, clip media.MediaBlob, output OutputType) error {
	ctx = o.operationContext(ctx, sess, "query")
	start := time.Now()

	err := o.query(ctx, sess, audio, output, func(gctx context.Context) ([]byte, error) {
		return o.selectAndEncode(gctx, sess, clip)
	})
	metrics.RecordQuery("query", statusOf(err), time.Since(start).Seconds())
	return err
}

// QueryWithImages answers a spoken question about a set of still images,
// selecting the sharpest the same way a clip's frames are scored.
func (o *Orchestrator) QueryWithImages(ctx context.Context, sess session.Channel,
	audio media.MediaBlob, images [][]byte, output OutputType) error {
	ctx = o.operationContext(ctx, sess, "query_with_images")
	start := time.Now()

	err := o.query(ctx, sess, audio, output, func(gctx context.Context) ([]byte, error) {
		frame, err := o.selector.SelectBestStill(gctx, images)
		if err != nil {
			return nil, err
		}
		return o.encodeAndCache(gctx, sess, frame)
	})
	metrics.RecordQuery("query_with_images", statusOf(err), time.Since(start).Seconds())
	return err
}

// query runs the shared query flow: concurrent frame+transcript branches,
// gating, the text short-circuit, synthesis, and delivery.
func (o *Orchestrator) query(ctx context.Context, sess session.Channel, audio media.MediaBlob,
	output OutputType, frameBranch func(context.Context) ([]byte, error)) error {

	var (
		png        []byte
		transcript string
	)

	// Both branches are independent and latency-additive if serialized.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		png, err = frameBranch(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		transcript, err = o.gateway.Transcribe(gctx, audio.Data)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "Query input stage failed", "error", err)
		return err
	}

	if rejected, err := o.gate(ctx, sess, transcript); rejected || err != nil {
		return err
	}

	if output == OutputText {
		// Cost short-circuit: no synthesis call for text-only answers.
		return o.emit(ctx, sess, EventText, transcript)
	}

	prompt := strings.ReplaceAll(o.template, "{transcript}", transcript)
	answer, err := o.gateway.Synthesize(ctx, prompt, png)
	if err != nil {
		logger.ErrorContext(ctx, "Synthesis failed", "error", err)
		return err
	}

	return o.deliver(ctx, sess, answer, output)
}

// gate applies the transcript length contract. Rejections are control flow,
// not errors: the client gets exactly one event and the query stops.
func (o *Orchestrator) gate(ctx context.Context, sess session.Channel, transcript string) (bool, error) {
	length := utf8.RuneCountInString(transcript)

	var event string
	switch {
	case length == 0:
		event = EventNoAudio
	case length > maxTranscriptRunes:
		event = EventLongAudio
	case length < minTranscriptRunes:
		event = EventShortAudio
	default:
		return false, nil
	}

	logger.InfoContext(ctx, "Transcript gated", "event", event, "length", length)
	return true, o.emit(ctx, sess, event, nil)
}

// deliver sends the synthesized answer in the requested shape.
func (o *Orchestrator) deliver(ctx context.Context, sess session.Channel,
	answer []byte, output OutputType) error {
	switch output {
	case OutputChunk:
		return o.deliverChunks(ctx, sess, answer)
	case OutputURL:
		url, err := o.uploader.Store(ctx, answer, "answer.wav", sess.BaseURL())
		if err != nil {
			logger.ErrorContext(ctx, "Answer upload failed", "error", err)
			return err
		}
		return o.emit(ctx, sess, EventAudioURL, url)
	default:
		return o.emit(ctx, sess, EventAudio, answer)
	}
}

// deliverChunks streams the answer as fixed-size chunks followed, after a
// short pause, by one empty sentinel chunk.
func (o *Orchestrator) deliverChunks(ctx context.Context, sess session.Channel, answer []byte) error {
	for offset := 0; offset < len(answer); offset += chunkSize {
		end := offset + chunkSize
		if end > len(answer) {
			end = len(answer)
		}
		if err := o.emit(ctx, sess, EventAudioChunk, answer[offset:end]); err != nil {
			return err
		}
	}

	select {
	case <-time.After(o.chunkPause):
	case <-ctx.Done():
		return ctx.Err()
	}
	return o.emit(ctx, sess, EventAudioChunk, []byte{})
}

// selectAndEncode runs the clip pipeline and caches the encoded result. An
// empty clip reuses the session's last cached frame.
func (o *Orchestrator) selectAndEncode(ctx context.Context, sess session.Channel,
	clip media.MediaBlob) ([]byte, error) {
	if len(clip.Data) == 0 {
		cached, err := o.cache.Get(ctx, sess.ID())
		if err == nil {
			logger.DebugContext(ctx, "Reusing cached frame")
			return cached, nil
		}
		return nil, &media.DecodeError{MIME: clip.MIME, Reason: "empty clip and no cached frame"}
	}

	frame, err := o.selector.SelectBestFrame(ctx, clip)
	if err != nil {
		return nil, err
	}
	return o.encodeAndCache(ctx, sess, frame)
}

func (o *Orchestrator) encodeAndCache(ctx context.Context, sess session.Channel,
	frame media.Frame) ([]byte, error) {
	png, err := o.selector.Encode(ctx, frame)
	if err != nil {
		return nil, err
	}
	if err := o.cache.Put(ctx, sess.ID(), png); err != nil {
		// Cache writes are best effort; the query proceeds regardless.
		logger.WarnContext(ctx, "Frame cache write failed", "error", err)
	}
	return png, nil
}

// emit sends one event to the session. A closed channel is logged and
// dropped, never surfaced as an operation failure.
func (o *Orchestrator) emit(ctx context.Context, sess session.Channel, event string, payload any) error {
	err := sess.Emit(event, payload)
	if errors.Is(err, session.ErrSessionClosed) {
		logger.WarnContext(ctx, "Dropping event for closed session", "event", event)
		return nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "Event emit failed", "event", event, "error", err)
		return err
	}
	metrics.RecordEventEmitted(event)
	return nil
}

func (o *Orchestrator) operationContext(ctx context.Context, sess session.Channel, operation string) context.Context {
	return logger.WithOperation(logger.WithSessionID(ctx, sess.ID()), operation)
}

func statusOf(err error) string {
	if err != nil {
		return metrics.StatusError
	}
	return metrics.StatusSuccess
}
