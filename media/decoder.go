package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Default decoder configuration values.
const (
	// DefaultFFmpegPath is the default path to the ffmpeg binary.
	DefaultFFmpegPath = "ffmpeg"

	// DefaultFFprobePath is the default path to the ffprobe binary.
	DefaultFFprobePath = "ffprobe"

	// DefaultDecodeTimeout bounds one ffmpeg/ffprobe execution.
	DefaultDecodeTimeout = 30 * time.Second

	// stderrTailBytes limits how much of ffmpeg's stderr is kept for errors.
	stderrTailBytes = 512
)

// videoContainers maps MIME types to container hints the decoder accepts.
var videoContainers = map[string]string{
	"video/mp4":  "mp4",
	"video/webm": "webm",
	"video/ogg":  "ogg",
}

// containerDemuxers maps container hints to ffmpeg demuxer names, needed
// because piped input has no filename for format detection.
var containerDemuxers = map[string]string{
	"mp4":  "mp4",
	"webm": "matroska,webm",
	"ogg":  "ogg",
}

// DecoderConfig configures the frame decoder.
type DecoderConfig struct {
	// FFmpegPath is the path to the ffmpeg binary. Default: "ffmpeg".
	FFmpegPath string

	// FFprobePath is the path to the ffprobe binary. Default: "ffprobe".
	FFprobePath string

	// Timeout is the maximum time for one decode execution.
	// Default: 30 seconds.
	Timeout time.Duration
}

// DefaultDecoderConfig returns sensible defaults for frame decoding.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		FFmpegPath:  DefaultFFmpegPath,
		FFprobePath: DefaultFFprobePath,
		Timeout:     DefaultDecodeTimeout,
	}
}

// Decoder turns a raw video blob into an ordered sequence of BGR frames.
//
// The blob is fed to ffprobe and ffmpeg over stdin and frames are read back
// over stdout as raw bgr24 rasters, so nothing touches the filesystem.
// A Decoder is stateless after construction and safe for concurrent use.
type Decoder struct {
	config DecoderConfig
}

// NewDecoder creates a frame decoder with the given config.
func NewDecoder(config DecoderConfig) *Decoder {
	if config.FFmpegPath == "" {
		config.FFmpegPath = DefaultFFmpegPath
	}
	if config.FFprobePath == "" {
		config.FFprobePath = DefaultFFprobePath
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultDecodeTimeout
	}
	return &Decoder{config: config}
}

// ContainerHint resolves a MIME type or extension hint to a supported
// container name. Full MIME strings are truncated at the first ";".
// Unsupported hints fail with a *DecodeError naming the offending type.
func ContainerHint(mime string) (string, error) {
	hint := mime
	if idx := strings.Index(hint, ";"); idx != -1 {
		hint = hint[:idx]
	}
	hint = strings.ToLower(strings.TrimSpace(hint))

	if strings.Contains(hint, "/") {
		container, ok := videoContainers[hint]
		if !ok {
			return "", &DecodeError{MIME: mime, Reason: "unsupported media type"}
		}
		return container, nil
	}

	hint = strings.TrimPrefix(hint, ".")
	if _, ok := containerDemuxers[hint]; !ok {
		return "", &DecodeError{MIME: mime, Reason: "unsupported media type"}
	}
	return hint, nil
}

// Decode converts a video blob into a frame sequence.
// It never returns an empty sequence: zero decoded frames is a *DecodeError.
func (d *Decoder) Decode(ctx context.Context, blob MediaBlob) (FrameSequence, error) {
	if len(blob.Data) == 0 {
		return nil, &DecodeError{MIME: blob.MIME, Reason: "empty media blob"}
	}

	container, err := ContainerHint(blob.MIME)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	width, height, err := d.probe(ctx, blob.Data, container)
	if err != nil {
		return nil, err
	}

	raw, err := d.extract(ctx, blob.Data, container)
	if err != nil {
		return nil, err
	}

	frameSize := width * height * bgrChannels
	if len(raw) < frameSize {
		return nil, &DecodeError{MIME: blob.MIME, Reason: "no frames decoded", Cause: ErrNoFrames}
	}

	count := len(raw) / frameSize
	frames := make(FrameSequence, 0, count)
	for i := 0; i < count; i++ {
		frames = append(frames, Frame{
			Width:  width,
			Height: height,
			Pix:    raw[i*frameSize : (i+1)*frameSize],
		})
	}
	return frames, nil
}

// probe runs ffprobe over the blob to discover the raster dimensions.
func (d *Decoder) probe(ctx context.Context, data []byte, container string) (width, height int, err error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, d.config.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		"pipe:0",
	)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, 0, &DecodeError{
			Reason: "probe failed: " + stderrTail(&stderr),
			Cause:  err,
		}
	}

	var probed struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &probed); err != nil {
		return 0, 0, &DecodeError{Reason: "unreadable probe output", Cause: err}
	}
	if len(probed.Streams) == 0 || probed.Streams[0].Width <= 0 || probed.Streams[0].Height <= 0 {
		return 0, 0, &DecodeError{Reason: fmt.Sprintf("no video stream in %s container", container)}
	}
	return probed.Streams[0].Width, probed.Streams[0].Height, nil
}

// extract runs ffmpeg over the blob and returns the concatenated bgr24 rasters.
func (d *Decoder) extract(ctx context.Context, data []byte, container string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath,
		"-v", "error",
		"-f", containerDemuxers[container],
		"-i", "pipe:0",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &DecodeError{
			Reason: "corrupt or undecodable stream: " + stderrTail(&stderr),
			Cause:  err,
		}
	}
	return stdout.Bytes(), nil
}

// stderrTail returns the last portion of captured stderr for error context.
func stderrTail(buf *bytes.Buffer) string {
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "no diagnostic output"
	}
	if len(out) > stderrTailBytes {
		out = out[len(out)-stderrTailBytes:]
	}
	return out
}
