package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"notion-watch/internal/diff"
)

// Metrics instruments observation cycles. All methods are nil-safe so a
// Runner without metrics pays nothing.
type Metrics struct {
	cycles       *prometheus.CounterVec
	changesTotal *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

// NewMetrics registers the watcher's metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notion_watch_cycles_total",
			Help: "Observation cycles per collection and outcome.",
		}, []string{"collection", "status"}),
		changesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notion_watch_changes_total",
			Help: "Detected record changes per collection and kind.",
		}, []string{"collection", "kind"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notion_watch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle per collection.",
		}, []string{"collection"}),
	}
}

func (m *Metrics) cycleDone(collection string, ok bool) {
	if m == nil {
		return
	}
	status := "error"
	if ok {
		status = "ok"
	}
	m.cycles.WithLabelValues(collection, status).Inc()
	if ok {
		m.lastSuccess.WithLabelValues(collection).SetToCurrentTime()
	}
}

func (m *Metrics) changes(collection string, s diff.Summary) {
	if m == nil {
		return
	}
	m.changesTotal.WithLabelValues(collection, string(diff.KindAdded)).Add(float64(s.Added))
	m.changesTotal.WithLabelValues(collection, string(diff.KindUpdated)).Add(float64(s.Updated))
	m.changesTotal.WithLabelValues(collection, string(diff.KindDeleted)).Add(float64(s.Deleted))
}
