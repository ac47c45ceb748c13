package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-ai/sightline/framecache"
	"github.com/sightline-ai/sightline/gateway"
	"github.com/sightline-ai/sightline/media"
	"github.com/sightline-ai/sightline/session"
)

// fakeChannel records emitted events in order.
type fakeChannel struct {
	mu     sync.Mutex
	id     string
	closed bool
	events []emitted
}

type emitted struct {
	event   string
	payload any
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{id: "sess-test"}
}

func (c *fakeChannel) ID() string      { return c.id }
func (c *fakeChannel) BaseURL() string { return "http://host:8000" }
func (c *fakeChannel) IsOpen() bool    { return !c.closed }
func (c *fakeChannel) Close() error    { c.closed = true; return nil }

func (c *fakeChannel) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return session.ErrSessionClosed
	}
	c.events = append(c.events, emitted{event: event, payload: payload})
	return nil
}

func (c *fakeChannel) emittedEvents() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.events...)
}

// fakeSelector returns a fixed frame and encoding, with optional hooks.
type fakeSelector struct {
	frame       media.Frame
	png         []byte
	selectErr   error
	onSelect    func(ctx context.Context) error
	stillCalled bool
}

func newFakeSelector() *fakeSelector {
	return &fakeSelector{
		frame: media.Frame{Width: 1, Height: 1, Pix: []byte{0, 0, 0}},
		png:   []byte("png-bytes"),
	}
}

func (s *fakeSelector) SelectBestFrame(ctx context.Context, _ media.MediaBlob) (media.Frame, error) {
	if s.onSelect != nil {
		if err := s.onSelect(ctx); err != nil {
			return media.Frame{}, err
		}
	}
	return s.frame, s.selectErr
}

func (s *fakeSelector) SelectBestStill(_ context.Context, _ [][]byte) (media.Frame, error) {
	s.stillCalled = true
	return s.frame, s.selectErr
}

func (s *fakeSelector) Encode(_ context.Context, _ media.Frame) ([]byte, error) {
	return s.png, nil
}

// fakeGateway scripts gateway responses and records calls.
type fakeGateway struct {
	mu             sync.Mutex
	concepts       []gateway.Concept
	regions        []gateway.Region
	transcript     string
	transcribeErr  error
	answer         []byte
	synthesizeErr  error
	synthesized    int
	prompts        []string
	onTranscribe   func(ctx context.Context) error
	transcribeSeen [][]byte
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Recognize(_ context.Context, _ []byte) ([]gateway.Concept, error) {
	return g.concepts, nil
}

func (g *fakeGateway) Detect(_ context.Context, _ []byte) ([]gateway.Region, error) {
	return g.regions, nil
}

func (g *fakeGateway) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if g.onTranscribe != nil {
		if err := g.onTranscribe(ctx); err != nil {
			return "", err
		}
	}
	g.mu.Lock()
	g.transcribeSeen = append(g.transcribeSeen, audio)
	g.mu.Unlock()
	return g.transcript, g.transcribeErr
}

func (g *fakeGateway) Synthesize(_ context.Context, prompt string, _ []byte) ([]byte, error) {
	g.mu.Lock()
	g.synthesized++
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.answer, g.synthesizeErr
}

// fakeUploader records the last stored payload.
type fakeUploader struct {
	data     []byte
	filename string
	baseURL  string
}

func (u *fakeUploader) Store(_ context.Context, data []byte, filename, baseURL string) (string, error) {
	u.data = data
	u.filename = filename
	u.baseURL = baseURL
	return baseURL + "/resource/abc12345_" + filename, nil
}

func newTestOrchestrator(selector *fakeSelector, gw *fakeGateway) *Orchestrator {
	o := New(selector, gw, &fakeUploader{}, framecache.NewMemory(time.Minute), Config{
		Obstacles:      []string{"car", "tree", "bus"},
		PromptTemplate: "Answer: {transcript}",
	})
	o.chunkPause = time.Millisecond
	return o
}

func clip() media.MediaBlob {
	return media.MediaBlob{Data: []byte("clip"), MIME: "video/mp4"}
}

func audioBlob() media.MediaBlob {
	return media.MediaBlob{Data: []byte("wav")}
}

func TestRecognizeEmitsConcepts(t *testing.T) {
	gw := &fakeGateway{concepts: []gateway.Concept{{ID: "c1", Name: "dog", Value: 0.98}}}
	o := newTestOrchestrator(newFakeSelector(), gw)
	ch := newFakeChannel()

	require.NoError(t, o.Recognize(context.Background(), ch, clip()))

	events := ch.emittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventRecognition, events[0].event)
	assert.Equal(t, gw.concepts, events[0].payload)
}

func TestRecognizeSelectFailure(t *testing.T) {
	selector := newFakeSelector()
	selector.selectErr = &media.DecodeError{MIME: "video/mp4", Reason: "corrupt"}
	o := newTestOrchestrator(selector, &fakeGateway{})
	ch := newFakeChannel()

	err := o.Recognize(context.Background(), ch, clip())

	var decodeErr *media.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Empty(t, ch.emittedEvents())
	assert.True(t, ch.IsOpen())
}

func TestDetectEmitsWarning(t *testing.T) {
	gw := &fakeGateway{regions: []gateway.Region{
		{
			Box:      gateway.BoundingBox{Top: 0.1, Left: 0.0, Bottom: 0.5, Right: 0.4},
			Concepts: []gateway.Concept{{Name: "car", Value: 0.9}},
		},
		{
			Box:      gateway.BoundingBox{Top: 0.1, Left: 0.6, Bottom: 0.2, Right: 0.7},
			Concepts: []gateway.Concept{{Name: "bus", Value: 0.8}},
		},
		{
			// Not in the allow-list, must be filtered out.
			Box:      gateway.BoundingBox{Top: 0.1, Left: 0.6, Bottom: 0.9, Right: 0.9},
			Concepts: []gateway.Concept{{Name: "cloud", Value: 0.7}},
		},
	}}
	o := newTestOrchestrator(newFakeSelector(), gw)
	ch := newFakeChannel()

	require.NoError(t, o.Detect(context.Background(), ch, clip()))

	events := ch.emittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventDetection, events[0].event)

	sentence, ok := events[0].payload.(string)
	require.True(t, ok)
	assert.Contains(t, sentence, "on your left there is a: car near")
	assert.Contains(t, sentence, "on your right there is a: bus very far")
	assert.Contains(t, sentence, " and ")
	assert.NotContains(t, sentence, "cloud")
}

func TestQueryGating(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		wantEvent  string
	}{
		{"empty", "", EventNoAudio},
		{"short", strings.Repeat("a", 5), EventShortAudio},
		{"long", strings.Repeat("a", 501), EventLongAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{transcript: tt.transcript}
			o := newTestOrchestrator(newFakeSelector(), gw)
			ch := newFakeChannel()

			require.NoError(t, o.Query(context.Background(), ch, audioBlob(), clip(), OutputAudio))

			events := ch.emittedEvents()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantEvent, events[0].event)
			assert.Zero(t, gw.synthesized, "gated queries must not reach synthesis")
		})
	}
}

func TestQueryAcceptedTranscript(t *testing.T) {
	gw := &fakeGateway{
		transcript: strings.Repeat("a", 50),
		answer:     []byte("wav-answer"),
	}
	o := newTestOrchestrator(newFakeSelector(), gw)
	ch := newFakeChannel()

	require.NoError(t, o.Query(context.Background(), ch, audioBlob(), clip(), OutputAudio))

	events := ch.emittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventAudio, events[0].event)
	assert.Equal(t, []byte("wav-answer"), events[0].payload)

	require.Len(t, gw.prompts, 1)
	assert.Equal(t, "Answer: "+strings.Repeat("a", 50), gw.prompts[0])
}

func TestQueryTextShortCircuit(t *testing.T) {
	gw := &fakeGateway{transcript: "what is in front of me"}
	o := newTestOrchestrator(newFakeSelector(), gw)
	ch := newFakeChannel()

	require.NoError(t, o.Query(context.Background(), ch, audioBlob(), clip(), OutputText))

	events := ch.emittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventText, events[0].event)
	assert.Equal(t, "what is in front of me", events[0].payload)
	assert.Zero(t, gw.synthesized, "text answers skip synthesis entirely")
}

func TestQueryChunkDelivery(t *testing.T) {
	answer := make([]byte, 2500)
	for i := range answer {
		answer[i] = byte(i)
	}
	gw := &fakeGateway{transcript: strings.Repeat("a", 20), answer: answer}
	o := newTestOrchestrator(newFakeSelector(), gw)
	ch := newFakeChannel()

	require.NoError(t, o.Query(context.Background(), ch, audioBlob(), clip(), OutputChunk))

	events := ch.emittedEvents()
	require.Len(t, events, 4)
	for _, e := range events {
		assert.Equal(t, EventAudioChunk, e.event)
	}
	assert.Len(t, events[0].payload, 1024)
	assert.Len(t, events[1].payload, 1024)
	assert.Len(t, events[2].payload, 452)
	assert.Empty(t, events[3].payload, "terminal sentinel chunk must be empty")

	reassembled := append(append(append([]byte{},
		events[0].payload.([]byte)...),
		events[1].payload.([]byte)...),
		events[2].payload.([]byte)...)
	assert.Equal(t, answer, reassembled)
}

func TestQueryURLDelivery(t *testing.T) {
	gw := &fakeGateway{transcript: strings.Repeat("a", 20), answer: []byte("wav")}
	uploader := &fakeUploader{}
	o := New(newFakeSelector(), gw, uploader, framecache.NewMemory(time.Minute), Config{
		PromptTemplate: "{transcript}",
	})
	ch := newFakeChannel()

	require.NoError(t, o.Query(context.Background(), ch, audioBlob(), clip(), OutputURL))

	events := ch.emittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventAudioURL, events[0].event)
	assert.Equal(t, "http://host:8000/resource/abc12345_answer.wav", events[0].payload)
	assert.Equal(t, []byte("wav"), uploader.data)
	assert.Equal(t, "http://host:8000", uploader.baseURL)
}

func TestQueryBranchesRunConcurrently(t *testing.T) {
	selectStarted := make(chan struct{})
	transcribeStarted := make(chan struct{})

	await := func(ctx context.Context, ch <-chan struct{}) error {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("branches did not overlap")
		}
	}

	selector := newFakeSelector()
	selector.onSelect = func(ctx context.Context) error {
		close(selectStarted)
		return await(ctx, transcribeStarted)
	}
	gw := &fakeGateway{transcript: strings.Repeat("a", 20), answer: []byte("wav")}
	gw.onTranscribe = func(ctx context.Context) error {
		close(transcribeStarted)
		return await(ctx, selectStarted)
	}

	o := newTestOrchestrator(selector, gw)
	ch := newFakeChannel()

	require.NoError(t, o.Query(context.Background(), ch, audioBlob(), clip(), OutputAudio))
}

func TestQueryTranscribeFailure(t *testing.T) {
	gw := &fakeGateway{transcribeErr: errors.New("provider down")}
	o := newTestOrchestrator(newFakeSelector(), gw)
	ch := newFakeChannel()

	err := o.Query(context.Background(), ch, audioBlob(), clip(), OutputAudio)
	assert.Error(t, err)
	assert.Empty(t, ch.emittedEvents())
}

func TestEmitToClosedSessionIsDropped(t *testing.T) {
	gw := &fakeGateway{concepts: []gateway.Concept{{Name: "dog"}}}
	o := newTestOrchestrator(newFakeSelector(), gw)
	ch := newFakeChannel()
	require.NoError(t, ch.Close())

	// A disconnected session must never turn a finished pipeline into a
	// crash or an error.
	assert.NoError(t, o.Recognize(context.Background(), ch, clip()))
}

func TestEmptyClipUsesCachedFrame(t *testing.T) {
	gw := &fakeGateway{concepts: []gateway.Concept{{Name: "dog"}}}
	selector := newFakeSelector()
	o := newTestOrchestrator(selector, gw)
	ch := newFakeChannel()

	// First request populates the cache.
	require.NoError(t, o.Recognize(context.Background(), ch, clip()))

	// Second request with no clip succeeds off the cached frame.
	selector.selectErr = errors.New("selector must not be called")
	require.NoError(t, o.Recognize(context.Background(), ch, media.MediaBlob{}))

	events := ch.emittedEvents()
	assert.Len(t, events, 2)
}

func TestEmptyClipWithoutCacheFails(t *testing.T) {
	o := newTestOrchestrator(newFakeSelector(), &fakeGateway{})
	ch := newFakeChannel()

	err := o.Recognize(context.Background(), ch, media.MediaBlob{MIME: "video/mp4"})

	var decodeErr *media.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestQueryWithImages(t *testing.T) {
	gw := &fakeGateway{transcript: "describe what you can see", answer: []byte("wav")}
	selector := newFakeSelector()
	o := newTestOrchestrator(selector, gw)
	ch := newFakeChannel()

	err := o.QueryWithImages(context.Background(), ch, audioBlob(),
		[][]byte{[]byte("img1"), []byte("img2")}, OutputAudio)
	require.NoError(t, err)

	assert.True(t, selector.stillCalled)
	events := ch.emittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventAudio, events[0].event)
}

func TestParseOutputType(t *testing.T) {
	assert.Equal(t, OutputAudio, ParseOutputType(""))
	assert.Equal(t, OutputAudio, ParseOutputType("audio"))
	assert.Equal(t, OutputAudio, ParseOutputType("bogus"))
	assert.Equal(t, OutputChunk, ParseOutputType("chunk"))
	assert.Equal(t, OutputText, ParseOutputType("text"))
	assert.Equal(t, OutputURL, ParseOutputType("url"))
}
