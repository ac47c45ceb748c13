package media

import (
	"bytes"
	"image"
	"image/png"
)

// Fixed trim margins applied before encoding, purely to shave payload size.
// The longer dimension loses the larger margin. The trim is deterministic:
// the same input frame always produces the same output bytes.
const (
	trimLongMargin  = 50
	trimShortMargin = 20
)

// TrimmedSize returns the post-trim dimensions for a frame of the given size.
// Dimensions never drop below one pixel.
func TrimmedSize(width, height int) (int, int) {
	trimW, trimH := trimShortMargin, trimLongMargin
	if width > height {
		trimW, trimH = trimLongMargin, trimShortMargin
	}
	width = max(width-trimW, 1)
	height = max(height-trimH, 1)
	return width, height
}

// EncodePNG converts the selected frame into transport-ready PNG bytes,
// applying the fixed margin trim first. Encoding failures are fatal to the
// current request only.
func EncodePNG(frame Frame) ([]byte, error) {
	img, err := frame.ToImage()
	if err != nil {
		return nil, &EncodeError{Reason: "malformed frame", Cause: err}
	}

	width, height := TrimmedSize(frame.Width, frame.Height)
	offsetX := (frame.Width - width) / 2
	offsetY := (frame.Height - height) / 2
	cropped := img.SubImage(image.Rect(offsetX, offsetY, offsetX+width, offsetY+height))

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, &EncodeError{Reason: "png encoding failed", Cause: err}
	}
	return buf.Bytes(), nil
}
