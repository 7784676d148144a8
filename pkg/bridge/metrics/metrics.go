// Package metrics exposes bridge operational counters on a dedicated
// Prometheus registry. All methods are nil-safe so wiring metrics stays
// optional.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	activeSessions  prometheus.Gauge
	sessionsStarted prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	framesIn        prometheus.Counter
	framesOut       prometheus.Counter
	framesDropped   prometheus.Counter
	bytesIn         prometheus.Counter
	toolCalls       *prometheus.CounterVec
	summarizations  *prometheus.CounterVec
	interruptions   prometheus.Counter
	resets          prometheus.Counter
	upstreamErrors  prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voxbridge_active_sessions",
			Help: "Voice sessions currently open.",
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_sessions_started_total",
			Help: "Voice sessions accepted.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxbridge_sessions_closed_total",
			Help: "Voice sessions ended, by reason.",
		}, []string{"reason"}),
		framesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_audio_frames_in_total",
			Help: "Microphone frames accepted from browsers.",
		}),
		framesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_audio_frames_out_total",
			Help: "Assistant audio frames queued to browsers.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_audio_frames_dropped_total",
			Help: "Microphone frames rejected by the rate limiter.",
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_audio_bytes_in_total",
			Help: "Decoded PCM bytes accepted from browsers.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxbridge_tool_calls_total",
			Help: "Tool executions, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		summarizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxbridge_summarizations_total",
			Help: "Conversation summarization attempts, by outcome.",
		}, []string{"outcome"}),
		interruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_interruptions_total",
			Help: "Barge-ins that canceled assistant audio.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_resets_total",
			Help: "Conversation resets requested by clients.",
		}),
		upstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_upstream_errors_total",
			Help: "Speech model connection failures.",
		}),
	}
	registry.MustRegister(
		m.activeSessions, m.sessionsStarted, m.sessionsClosed,
		m.framesIn, m.framesOut, m.framesDropped, m.bytesIn,
		m.toolCalls, m.summarizations, m.interruptions, m.resets,
		m.upstreamErrors,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(reason).Inc()
	m.activeSessions.Dec()
}

func (m *Metrics) AudioFrameIn(pcmBytes int) {
	if m == nil {
		return
	}
	m.framesIn.Inc()
	m.bytesIn.Add(float64(pcmBytes))
}

func (m *Metrics) AudioFrameOut() {
	if m == nil {
		return
	}
	m.framesOut.Inc()
}

func (m *Metrics) AudioFrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

func (m *Metrics) ToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "ok"
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) Summarization(success bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "ok"
	}
	m.summarizations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Interruption() {
	if m == nil {
		return
	}
	m.interruptions.Inc()
}

func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

func (m *Metrics) UpstreamError() {
	if m == nil {
		return
	}
	m.upstreamErrors.Inc()
}
