package media

import (
	"bytes"
	"image"

	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// DecodeStill decodes a still image (PNG, JPEG, GIF, WebP) into a frame.
// Used when a client submits pre-captured images instead of a video clip.
func DecodeStill(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, &DecodeError{Reason: "empty image data"}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, &DecodeError{Reason: "undecodable image", Cause: err}
	}
	frame := FrameFromImage(img)
	if !frame.Valid() {
		return Frame{}, &DecodeError{MIME: format, Reason: "image has no pixels"}
	}
	return frame, nil
}
