package server

import (
	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server.
// A nil *Metrics records nothing.
type Metrics struct {
	// Session metrics
	activeSessions       prometheus.Gauge
	sessionsCreated      prometheus.Counter
	sessionsDisconnected prometheus.Counter

	// Packet metrics
	packetsReceived *prometheus.CounterVec // by packet type
	packetsSent     *prometheus.CounterVec // by packet type
	invalidPackets  prometheus.Counter
	rateLimited     prometheus.Counter

	// Broadcast metrics
	broadcastFanout prometheus.Histogram
}

// NewMetrics creates the server metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "neighborchat_server_active_sessions",
				Help: "Number of connected clients",
			},
		),
		sessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_server_sessions_created_total",
				Help: "Total number of client sessions created",
			},
		),
		sessionsDisconnected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_server_sessions_disconnected_total",
				Help: "Total number of client sessions ended",
			},
		),
		packetsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neighborchat_server_packets_received_total",
				Help: "Total number of packets received from clients",
			},
			[]string{"type"},
		),
		packetsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neighborchat_server_packets_sent_total",
				Help: "Total number of packets sent to clients",
			},
			[]string{"type"},
		),
		invalidPackets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_server_invalid_packets_total",
				Help: "Total number of lines that failed to decode",
			},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neighborchat_server_rate_limited_total",
				Help: "Total number of packets rejected by the rate limiter",
			},
		),
		broadcastFanout: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "neighborchat_server_broadcast_fanout",
				Help:    "Number of clients that received each broadcast",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
	}
}

func (m *Metrics) recordSessionCreated() {
	if m != nil {
		m.sessionsCreated.Inc()
		m.activeSessions.Inc()
	}
}

func (m *Metrics) recordSessionEnded() {
	if m != nil {
		m.sessionsDisconnected.Inc()
		m.activeSessions.Dec()
	}
}

func (m *Metrics) recordReceived(t protocol.PacketType) {
	if m != nil {
		m.packetsReceived.WithLabelValues(t.String()).Inc()
	}
}

func (m *Metrics) recordSent(t protocol.PacketType) {
	if m != nil {
		m.packetsSent.WithLabelValues(t.String()).Inc()
	}
}

func (m *Metrics) recordInvalid() {
	if m != nil {
		m.invalidPackets.Inc()
	}
}

func (m *Metrics) recordRateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) recordFanout(n int) {
	if m != nil {
		m.broadcastFanout.Observe(float64(n))
	}
}
