package media

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-ai/sightline/metrics"
)

// stageSampleCount reads the observation count for one stage label from a
// gathered registry.
func stageSampleCount(t *testing.T, registry *prometheus.Registry, stage string) uint64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "sightline_stage_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == "stage" && pair.GetValue() == stage {
					return metric.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func TestSelectBestFrameRecordsDecodeAndSelectStages(t *testing.T) {
	dir := t.TempDir()
	decoder := NewDecoder(DecoderConfig{
		FFprobePath: stubTool(t, dir, "ffprobe",
			`cat >/dev/null; printf '{"streams":[{"width":4,"height":2}]}'`),
		FFmpegPath: stubTool(t, dir, "ffmpeg",
			`cat >/dev/null; head -c 48 /dev/zero`),
	})
	processor := NewProcessor(decoder, NewPool(1))

	registry := metrics.NewExporter(":0").Registry()
	decodeBefore := stageSampleCount(t, registry, "decode")
	selectBefore := stageSampleCount(t, registry, "select")

	frame, err := processor.SelectBestFrame(context.Background(), MediaBlob{
		Data: []byte("clip"),
		MIME: "video/mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, frame.Width)

	assert.Equal(t, decodeBefore+1, stageSampleCount(t, registry, "decode"))
	assert.Equal(t, selectBefore+1, stageSampleCount(t, registry, "select"))
}

func TestEncodeRecordsEncodeStage(t *testing.T) {
	processor := NewProcessor(NewDecoder(DefaultDecoderConfig()), NewPool(1))

	registry := metrics.NewExporter(":0").Registry()
	before := stageSampleCount(t, registry, "encode")

	frame := Frame{Width: 2, Height: 2, Pix: make([]byte, 2*2*3)}
	encoded, err := processor.Encode(context.Background(), frame)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	assert.Equal(t, before+1, stageSampleCount(t, registry, "encode"))
}
