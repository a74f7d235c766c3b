// Package metrics exposes Prometheus instrumentation for the collaboration
// backend. A nil *Metrics is valid and records nothing, so tests and
// metrics-disabled deployments skip registration entirely.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	ActiveSessions    prometheus.Gauge

	// Membership and broadcast metrics
	ActiveMembers     prometheus.Gauge
	MessagesBroadcast prometheus.Counter
	SlowMemberDrops   prometheus.Counter

	// Audio framing metrics
	FramesDecoded prometheus.Counter
	FramingErrors prometheus.Counter

	// Assist pipeline metrics
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
}

// New creates and registers all metrics on the default registry. Call it at
// most once per process.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codevoice_sessions_created_total",
			Help: "Total number of collaboration sessions created",
		}),
		SessionsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codevoice_sessions_destroyed_total",
			Help: "Total number of collaboration sessions garbage collected or removed",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "codevoice_active_sessions",
			Help: "Current number of live collaboration sessions",
		}),
		ActiveMembers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "codevoice_active_members",
			Help: "Current number of connected members across all sessions",
		}),
		MessagesBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codevoice_messages_broadcast_total",
			Help: "Total number of hub broadcast fan-outs",
		}),
		SlowMemberDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codevoice_slow_member_drops_total",
			Help: "Total number of members dropped because their send queue overflowed",
		}),
		FramesDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codevoice_audio_frames_decoded_total",
			Help: "Total number of audio frames successfully decoded",
		}),
		FramingErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codevoice_audio_framing_errors_total",
			Help: "Total number of rejected audio frames",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codevoice_transcription_successes_total",
			Help: "Total number of successful transcription round trips",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "codevoice_transcription_failures_total",
			Help: "Total number of failed transcription round trips",
		}),
	}
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionDestroyed() {
	if m == nil {
		return
	}
	m.SessionsDestroyed.Inc()
	m.ActiveSessions.Dec()
}

func (m *Metrics) MemberJoined() {
	if m == nil {
		return
	}
	m.ActiveMembers.Inc()
}

func (m *Metrics) MemberLeft() {
	if m == nil {
		return
	}
	m.ActiveMembers.Dec()
}

func (m *Metrics) MessageBroadcast() {
	if m == nil {
		return
	}
	m.MessagesBroadcast.Inc()
}

func (m *Metrics) SlowMemberDropped() {
	if m == nil {
		return
	}
	m.SlowMemberDrops.Inc()
}

func (m *Metrics) FrameDecoded() {
	if m == nil {
		return
	}
	m.FramesDecoded.Inc()
}

func (m *Metrics) FramingError() {
	if m == nil {
		return
	}
	m.FramingErrors.Inc()
}

func (m *Metrics) TranscriptionSucceeded() {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
}

func (m *Metrics) TranscriptionFailed() {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
}
