package client

import (
	"strings"
	"testing"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.RecordConnectAttempt()
	m.RecordConnectFailure()
	m.RecordDisconnect()
	m.RecordConnectionState(StateConnected)
	m.RecordPacketReceived(protocol.TypeChat)
	m.RecordPacketSent(protocol.TypeChat, 10)
	m.RecordDecodeError()
	m.RecordOutboxDepth(3)
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordPacketSent(protocol.TypeChat, 40)
	m.RecordPacketSent(protocol.TypeListChannels, 11)
	m.RecordPacketReceived(protocol.TypeStatus)
	m.RecordConnectionState(StateConnected)
	m.RecordOutboxDepth(7)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.packetsSent.WithLabelValues(protocol.TypeChat.String())))
	assert.Equal(t, float64(51), testutil.ToFloat64(m.bytesSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.packetsReceived.WithLabelValues(protocol.TypeStatus.String())))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.connectionState))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.outboxDepth))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP neighborchat_decode_errors_total Total number of inbound lines that could not be decoded
# TYPE neighborchat_decode_errors_total counter
neighborchat_decode_errors_total 0
`), "neighborchat_decode_errors_total")
	require.NoError(t, err)
}

func TestNewMetricsTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
