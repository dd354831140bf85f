package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Turns              *prometheus.CounterVec
	TurnLatency        prometheus.Histogram
	RemoteFallbacks    *prometheus.CounterVec
	StorageErrors      *prometheus.CounterVec
	DegradedReplies    prometheus.Counter
	AssistantSaveDrops prometheus.Counter
	ActiveWSChats      prometheus.Gauge

	turnStages *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed conversational turns by outcome.",
		}, []string{"outcome"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000},
		}),
		RemoteFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_memory_fallbacks_total",
			Help:      "Remote memory calls served by the local store, by operation and failure kind.",
		}, []string{"op", "reason"}),
		StorageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Local storage failures by operation.",
		}, []string{"op"}),
		DegradedReplies: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_replies_total",
			Help:      "Replies produced without a configured upstream model.",
		}),
		AssistantSaveDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_save_drops_total",
			Help:      "Assistant turns whose best-effort persistence failed.",
		}),
		ActiveWSChats: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_ws_chats",
			Help:      "Number of open websocket chat connections.",
		}),
		turnStages: newTurnStageWindow(256),
	}
}

// ObserveTurnStage records one stage duration in the rolling window.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	m.turnStages.Observe(stage, float64(d.Microseconds())/1000.0)
}

// ObserveIndicator bumps a named event counter in the rolling window.
func (m *Metrics) ObserveIndicator(name string) {
	m.turnStages.ObserveIndicator(name)
}

// SnapshotTurnStages returns percentile stats for the recent turns.
func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	return m.turnStages.Snapshot()
}

func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	m.TurnLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
