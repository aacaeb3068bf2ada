package sqlstore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics are registered with Config.Registerer; with no registerer they are
// still counted but never exported.
type metrics struct {
	writes  *prometheus.CounterVec
	columns *prometheus.HistogramVec
	history *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		writes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "savechange",
			Subsystem: "sqlstore",
			Name:      "writes_total",
			Help:      "Writes issued by the store.",
		}, []string{"table", "operation"})),
		columns: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "savechange",
			Subsystem: "sqlstore",
			Name:      "written_columns",
			Help:      "Number of columns written per statement.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}, []string{"table", "operation"})),
		history: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "savechange",
			Subsystem: "sqlstore",
			Name:      "history_entries_total",
			Help:      "History entries flushed on commit.",
		}, []string{"table"})),
	}
}

// register adds c to reg. Stores sharing a registerer share the collector
// registered first.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var alreadyErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyErr) {
			if existing, ok := alreadyErr.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) observeWrite(e entry) {
	m.writes.WithLabelValues(e.table, e.op).Inc()
	m.columns.WithLabelValues(e.table, e.op).Observe(float64(len(e.after)))
}
