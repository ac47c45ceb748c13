// Package server exposes the session endpoint over HTTP: the WebSocket
// upgrade at /ws, stored answers under /resource/, and a health probe. It
// parses inbound events and hands them to the orchestrator; each operation
// runs in its own goroutine so a slow pipeline never blocks the read loop.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sightline-ai/sightline/logger"
	"github.com/sightline-ai/sightline/media"
	"github.com/sightline-ai/sightline/metrics"
	"github.com/sightline-ai/sightline/orchestrator"
	"github.com/sightline-ai/sightline/session"
	"github.com/sightline-ai/sightline/storage"
)

// readHeaderTimeout bounds header parsing on the HTTP listener.
const readHeaderTimeout = 10 * time.Second

// Inbound event names, part of the client contract.
const (
	eventRecognize       = "recognize"
	eventDetect          = "detect"
	eventQuery           = "query"
	eventQueryWithImages = "query_with_images"
)

// Operations is the orchestrator surface the server dispatches to.
type Operations interface {
	Recognize(ctx context.Context, sess session.Channel, clip media.MediaBlob) error
	Detect(ctx context.Context, sess session.Channel, clip media.MediaBlob) error
	Query(ctx context.Context, sess session.Channel, audio, clip media.MediaBlob,
		output orchestrator.OutputType) error
	QueryWithImages(ctx context.Context, sess session.Channel, audio media.MediaBlob,
		images [][]byte, output orchestrator.OutputType) error
}

// Config carries the server's listener settings.
type Config struct {
	// BaseURL is recorded on each session for resource links.
	BaseURL string

	// UploadDir is served read-only under /resource/.
	UploadDir string
}

// Server handles session connections.
type Server struct {
	cfg      Config
	ops      Operations
	registry *session.Registry
	upgrader websocket.Upgrader
}

// New creates a Server dispatching to ops.
func New(cfg Config, ops Operations) *Server {
	return &Server{
		cfg:      cfg,
		ops:      ops,
		registry: session.NewRegistry(),
	}
}

// Registry exposes the live-session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle(storage.ResourcePath, http.StripPrefix(storage.ResourcePath,
		http.FileServer(http.Dir(s.cfg.UploadDir))))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewHTTPServer wraps the handler in an http.Server for addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	ch := session.NewWSChannel(conn, s.cfg.BaseURL)

	// Operations outlive the read loop on disconnect: in-flight work may
	// finish, its emit is then dropped against the closed channel.
	ctx := logger.WithSessionID(context.Background(), ch.ID())

	s.registry.Add(ch)
	metrics.RecordSessionConnected()
	logger.InfoContext(ctx, "Session connected", "remote", r.RemoteAddr)

	defer func() {
		s.registry.Remove(ch.ID())
		metrics.RecordSessionDisconnected()
		_ = ch.Close()
		logger.InfoContext(ctx, "Session disconnected")
	}()

	if err := ch.Emit(session.EventServerID, ch.ID()); err != nil {
		logger.WarnContext(ctx, "Failed to send server id", "error", err)
		return
	}

	for {
		data, err := ch.Receive()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WarnContext(ctx, "Session read failed", "error", err)
			}
			return
		}
		s.dispatch(ctx, ch, data)
	}
}

// inboundMessage is the client-to-server event envelope. Binary fields
// arrive base64-encoded per encoding/json convention.
type inboundMessage struct {
	Event   string `json:"event"`
	Payload struct {
		Clip       []byte   `json:"clip"`
		MIME       string   `json:"mime"`
		Audio      []byte   `json:"audio"`
		Images     [][]byte `json:"images"`
		OutputType string   `json:"output_type"`
	} `json:"payload"`
}

// dispatch parses one inbound event and starts the matching operation.
// Operation errors are logged; the transport stays up.
func (s *Server) dispatch(ctx context.Context, ch session.Channel, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.WarnContext(ctx, "Dropping malformed message", "error", err)
		return
	}

	clip := media.MediaBlob{Data: msg.Payload.Clip, MIME: msg.Payload.MIME}
	audio := media.MediaBlob{Data: msg.Payload.Audio}
	output := orchestrator.ParseOutputType(msg.Payload.OutputType)

	var run func(context.Context) error
	switch msg.Event {
	case eventRecognize:
		run = func(ctx context.Context) error { return s.ops.Recognize(ctx, ch, clip) }
	case eventDetect:
		run = func(ctx context.Context) error { return s.ops.Detect(ctx, ch, clip) }
	case eventQuery:
		run = func(ctx context.Context) error { return s.ops.Query(ctx, ch, audio, clip, output) }
	case eventQueryWithImages:
		run = func(ctx context.Context) error {
			return s.ops.QueryWithImages(ctx, ch, audio, msg.Payload.Images, output)
		}
	default:
		logger.WarnContext(ctx, "Dropping unknown event", "event", msg.Event)
		return
	}

	go func() {
		if err := run(ctx); err != nil {
			logger.ErrorContext(ctx, "Operation failed", "event", msg.Event, "error", err)
		}
	}()
}
