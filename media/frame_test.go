package media

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameToImageRoundTrip(t *testing.T) {
	frame := Frame{Width: 2, Height: 1, Pix: []byte{
		255, 0, 0, // blue pixel (BGR)
		0, 0, 255, // red pixel
	}}

	img, err := frame.ToImage()
	require.NoError(t, err)

	back := FrameFromImage(img)
	assert.Equal(t, frame, back)
}

func TestFrameToImageInvalid(t *testing.T) {
	_, err := Frame{Width: 3, Height: 3, Pix: []byte{1}}.ToImage()
	assert.Error(t, err)
}

func TestFrameValid(t *testing.T) {
	assert.True(t, flatFrame(2, 2, 0, 0, 0).Valid())
	assert.False(t, Frame{}.Valid())
	assert.False(t, Frame{Width: 2, Height: 2, Pix: []byte{0}}.Valid())
}

func TestDecodeStillPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	frame, err := DecodeStill(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, frame.Width)
	assert.Equal(t, 2, frame.Height)
}

func TestDecodeStillRejectsGarbage(t *testing.T) {
	_, err := DecodeStill([]byte("definitely not an image"))

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDecodeStillEmpty(t *testing.T) {
	_, err := DecodeStill(nil)
	assert.Error(t, err)
}

func TestPoolRunsWork(t *testing.T) {
	pool := NewPool(2)

	ran := false
	err := pool.Run(context.Background(), func() error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestPoolHonorsCancellation(t *testing.T) {
	pool := NewPool(1)

	release := make(chan struct{})
	go func() {
		_ = pool.Run(context.Background(), func() error {
			<-release
			return nil
		})
	}()

	// Give the first task time to take the only slot.
	ctx, cancel := context.WithCancel(context.Background())
	acquired := make(chan error, 1)
	go func() {
		acquired <- pool.Run(ctx, func() error { return nil })
	}()
	cancel()

	err := <-acquired
	assert.Error(t, err)
	close(release)
}
