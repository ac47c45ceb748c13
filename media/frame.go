// Package media provides the clip processing pipeline: decoding video blobs to
// raw frames, scoring frames for sharpness, and encoding the selected frame.
package media

import (
	"fmt"
	"image"
)

// Channel counts for raw frame layouts.
const (
	// bgrChannels is the number of byte samples per BGR pixel.
	bgrChannels = 3
)

// MediaBlob is a raw media payload with a MIME-type or extension hint.
// It is produced by the transport layer per event and consumed once.
type MediaBlob struct {
	Data []byte
	MIME string
}

// Frame is a single decoded raster image in row-major BGR order,
// 8 bits per channel. A Frame is owned by one request's pipeline and is
// never shared across requests.
type Frame struct {
	Width  int
	Height int
	Pix    []byte // len = Width * Height * 3
}

// GrayFrame is a single-channel 8-bit grayscale raster, row-major.
type GrayFrame struct {
	Width  int
	Height int
	Pix    []byte // len = Width * Height
}

// FrameSequence is an ordered, index-addressable list of decoded frames.
// It is produced once per clip and discarded after selection.
type FrameSequence []Frame

// Valid reports whether the frame has positive dimensions and a raster of
// matching length.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*bgrChannels
}

// Grayscale converts the frame to grayscale using the BT.601 luminance
// weights (0.299 R + 0.587 G + 0.114 B). The transform is deterministic and
// applied independently per pixel.
func (f Frame) Grayscale() GrayFrame {
	gray := GrayFrame{
		Width:  f.Width,
		Height: f.Height,
		Pix:    make([]byte, f.Width*f.Height),
	}
	for i, j := 0, 0; i < len(f.Pix); i, j = i+bgrChannels, j+1 {
		b := int(f.Pix[i])
		g := int(f.Pix[i+1])
		r := int(f.Pix[i+2])
		gray.Pix[j] = byte((299*r + 587*g + 114*b + 500) / 1000)
	}
	return gray
}

// ToImage converts the frame to an NRGBA image for encoding.
func (f Frame) ToImage() (*image.NRGBA, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d with %d samples",
			f.Width, f.Height, len(f.Pix))
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := y * f.Width * bgrChannels
		dst := y * img.Stride
		for x := 0; x < f.Width; x++ {
			img.Pix[dst+0] = f.Pix[src+2] // R
			img.Pix[dst+1] = f.Pix[src+1] // G
			img.Pix[dst+2] = f.Pix[src+0] // B
			img.Pix[dst+3] = 0xff
			src += bgrChannels
			dst += 4
		}
	}
	return img, nil
}

// FrameFromImage converts a decoded image to a BGR frame.
func FrameFromImage(img image.Image) Frame {
	bounds := img.Bounds()
	frame := Frame{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    make([]byte, bounds.Dx()*bounds.Dy()*bgrChannels),
	}
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			frame.Pix[i+0] = byte(b >> 8)
			frame.Pix[i+1] = byte(g >> 8)
			frame.Pix[i+2] = byte(r >> 8)
			i += bgrChannels
		}
	}
	return frame
}
