package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(sessionsActive)

	RecordSessionConnected()
	RecordSessionConnected()
	assert.Equal(t, before+2, testutil.ToFloat64(sessionsActive))

	RecordSessionDisconnected()
	assert.Equal(t, before+1, testutil.ToFloat64(sessionsActive))

	RecordSessionDisconnected()
}

func TestEventCounter(t *testing.T) {
	counter := eventsEmittedTotal.WithLabelValues("recognition")
	before := testutil.ToFloat64(counter)

	RecordEventEmitted("recognition")
	RecordEventEmitted("recognition")

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestGatewayRequestCounter(t *testing.T) {
	counter := gatewayRequestsTotal.WithLabelValues("clarifai", "recognize", StatusSuccess)
	before := testutil.ToFloat64(counter)

	RecordGatewayRequest("clarifai", "recognize", StatusSuccess, 0.5)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestStageHistogramObserves(t *testing.T) {
	RecordStageDuration("decode", 0.25)
	RecordQuery("query", StatusError, 1.5)

	count, err := testutil.GatherAndCount(NewExporter(":0").Registry(),
		"sightline_stage_duration_seconds", "sightline_query_duration_seconds")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestExporterRegistersAll(t *testing.T) {
	exporter := NewExporter("127.0.0.1:0")
	require.NotNil(t, exporter.Registry())
}
