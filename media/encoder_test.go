package media

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	return img
}

func TestEncodePNGLandscapeRoundTripShape(t *testing.T) {
	encoded, err := EncodePNG(checkerFrame(200, 100))
	require.NoError(t, err)

	img := decodePNG(t, encoded)
	assert.Equal(t, 200-trimLongMargin, img.Bounds().Dx())
	assert.Equal(t, 100-trimShortMargin, img.Bounds().Dy())
}

func TestEncodePNGPortraitRoundTripShape(t *testing.T) {
	encoded, err := EncodePNG(checkerFrame(100, 200))
	require.NoError(t, err)

	img := decodePNG(t, encoded)
	assert.Equal(t, 100-trimShortMargin, img.Bounds().Dx())
	assert.Equal(t, 200-trimLongMargin, img.Bounds().Dy())
}

func TestEncodePNGDeterministic(t *testing.T) {
	frame := checkerFrame(64, 48)

	first, err := EncodePNG(frame)
	require.NoError(t, err)
	second, err := EncodePNG(frame)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncodePNGZeroSizeFrame(t *testing.T) {
	_, err := EncodePNG(Frame{})

	var encodeErr *EncodeError
	assert.ErrorAs(t, err, &encodeErr)
}

func TestEncodePNGMismatchedRaster(t *testing.T) {
	_, err := EncodePNG(Frame{Width: 10, Height: 10, Pix: make([]byte, 5)})

	var encodeErr *EncodeError
	assert.ErrorAs(t, err, &encodeErr)
}

func TestTrimmedSizeClampsTinyFrames(t *testing.T) {
	width, height := TrimmedSize(10, 5)
	assert.Equal(t, 1, width)
	assert.Equal(t, 1, height)
}

func TestTrimmedSizeLandscape(t *testing.T) {
	width, height := TrimmedSize(640, 480)
	assert.Equal(t, 640-trimLongMargin, width)
	assert.Equal(t, 480-trimShortMargin, height)
}
