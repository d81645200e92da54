// Package metrics provides Prometheus metrics for icmpong.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "icmpong"
)

// Discard reasons.
const (
	ReasonWrongSource = "wrong_source"
	ReasonSelfEcho    = "self_echo"
	ReasonNotICMPong  = "not_icmpong"
	ReasonDuplicate   = "duplicate_ready"
	ReasonEarly       = "not_established"
)

// Metrics contains all Prometheus metrics for a game session.
type Metrics struct {
	// Frame metrics
	FramesSent      *prometheus.CounterVec
	FramesReceived  *prometheus.CounterVec
	FramesDiscarded *prometheus.CounterVec
	SendErrors      prometheus.Counter

	// Session metrics
	HandshakeLatency prometheus.Histogram
	Rounds           *prometheus.CounterVec
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total frames sent by type",
		}, []string{"frame_type"}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total frames accepted from the peer by type",
		}, []string{"frame_type"}),
		FramesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_discarded_total",
			Help:      "Total inbound packets ignored by reason",
		}, []string{"reason"}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total socket errors while sending",
		}),
		HandshakeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time from the first Ping until the session is established",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),
		Rounds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Total rounds decided by this host, by winning side",
		}, []string{"winner"}),
	}
}

// RecordFrameSent records a frame being sent.
func (m *Metrics) RecordFrameSent(frameType string) {
	m.FramesSent.WithLabelValues(frameType).Inc()
}

// RecordFrameReceived records a frame being accepted.
func (m *Metrics) RecordFrameReceived(frameType string) {
	m.FramesReceived.WithLabelValues(frameType).Inc()
}

// RecordDiscard records an ignored inbound packet.
func (m *Metrics) RecordDiscard(reason string) {
	m.FramesDiscarded.WithLabelValues(reason).Inc()
}

// RecordSendError records a failed send.
func (m *Metrics) RecordSendError() {
	m.SendErrors.Inc()
}

// RecordHandshake records the handshake latency.
func (m *Metrics) RecordHandshake(latencySeconds float64) {
	m.HandshakeLatency.Observe(latencySeconds)
}

// RecordRound records a round won by winner.
func (m *Metrics) RecordRound(winner string) {
	m.Rounds.WithLabelValues(winner).Inc()
}
