package storage

import (
	"time"

	"github.com/maruel/awth/internal/docdb"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for collection persistence.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	saves        *prometheus.CounterVec   // By collection and result (ok/error)
	saveDuration *prometheus.HistogramVec // By collection
	loads        *prometheus.CounterVec   // By collection and result (ok/error)
	documents    *prometheus.GaugeVec     // By collection and state (live/tombstone)
	dirty        *prometheus.GaugeVec     // By collection
}

// NewMetrics creates and registers the metrics with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awth",
			Subsystem: "collection",
			Name:      "saves_total",
			Help:      "Total number of collection saves",
		}, []string{"collection", "result"}),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "awth",
			Subsystem: "collection",
			Name:      "save_duration_seconds",
			Help:      "Collection save duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"collection"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awth",
			Subsystem: "collection",
			Name:      "loads_total",
			Help:      "Total number of collection loads",
		}, []string{"collection", "result"}),
		documents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "awth",
			Subsystem: "collection",
			Name:      "documents",
			Help:      "Number of slots per collection, by state",
		}, []string{"collection", "state"}),
		dirty: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "awth",
			Subsystem: "collection",
			Name:      "dirty",
			Help:      "1 if the collection has unsaved changes",
		}, []string{"collection"}),
	}
	for _, c := range []prometheus.Collector{m.saves, m.saveDuration, m.loads, m.documents, m.dirty} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeSave(name string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(name, result(err)).Inc()
	m.saveDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeLoad(name string, err error) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(name, result(err)).Inc()
}

func (m *Metrics) observeStats(name string, s docdb.Stats) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(name, "live").Set(float64(s.Live))
	m.documents.WithLabelValues(name, "tombstone").Set(float64(s.Tombstones()))
	d := 0.
	if s.Dirty {
		d = 1
	}
	m.dirty.WithLabelValues(name).Set(d)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
