package client

import (
	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the connection core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Lifecycle metrics
	connectAttempts prometheus.Counter
	connectFailures prometheus.Counter
	disconnects     prometheus.Counter
	connectionState prometheus.Gauge

	// Traffic metrics
	packetsReceived *prometheus.CounterVec // by packet type
	packetsSent     *prometheus.CounterVec // by packet type
	bytesSent       prometheus.Counter
	decodeErrors    prometheus.Counter

	// Outbound queue
	outboxDepth prometheus.Gauge
}

// NewMetrics creates and registers the client metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connectAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_connect_attempts_total",
				Help: "Total number of connection attempts",
			},
		),
		connectFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_connect_failures_total",
				Help: "Total number of failed connection attempts",
			},
		),
		disconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_disconnects_total",
				Help: "Total number of established connections that ended",
			},
		),
		connectionState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "neighborchat_connection_state",
				Help: "Current connection state (0 disconnected, 1 connecting, 2 connected)",
			},
		),
		packetsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neighborchat_packets_received_total",
				Help: "Total number of packets decoded from the server",
			},
			[]string{"type"},
		),
		packetsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neighborchat_packets_sent_total",
				Help: "Total number of packets written to the server",
			},
			[]string{"type"},
		),
		bytesSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_bytes_sent_total",
				Help: "Total number of bytes written to the server",
			},
		),
		decodeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_decode_errors_total",
				Help: "Total number of inbound lines that could not be decoded",
			},
		),
		outboxDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "neighborchat_outbox_depth",
				Help: "Packets waiting in the outbound queue",
			},
		),
	}
}

// RecordConnectAttempt records a dial attempt
func (m *Metrics) RecordConnectAttempt() {
	if m != nil {
		m.connectAttempts.Inc()
	}
}

// RecordConnectFailure records a failed dial
func (m *Metrics) RecordConnectFailure() {
	if m != nil {
		m.connectFailures.Inc()
	}
}

// RecordDisconnect records the end of an established connection
func (m *Metrics) RecordDisconnect() {
	if m != nil {
		m.disconnects.Inc()
	}
}

// RecordConnectionState records the current connection state
func (m *Metrics) RecordConnectionState(state ConnectionState) {
	if m != nil {
		m.connectionState.Set(float64(state))
	}
}

// RecordPacketReceived records a decoded inbound packet
func (m *Metrics) RecordPacketReceived(t protocol.PacketType) {
	if m != nil {
		m.packetsReceived.WithLabelValues(t.String()).Inc()
	}
}

// RecordPacketSent records an outbound packet and its size on the wire
func (m *Metrics) RecordPacketSent(t protocol.PacketType, bytes int) {
	if m != nil {
		m.packetsSent.WithLabelValues(t.String()).Inc()
		m.bytesSent.Add(float64(bytes))
	}
}

// RecordDecodeError records an inbound line that was skipped
func (m *Metrics) RecordDecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

// RecordOutboxDepth records how many packets are queued
func (m *Metrics) RecordOutboxDepth(depth int) {
	if m != nil {
		m.outboxDepth.Set(float64(depth))
	}
}
