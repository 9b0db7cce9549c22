package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	snapshotPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "workwatch",
		Subsystem: "persistence",
		Name:      "last_snapshot_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent snapshot persisted to the store.",
	})
	reportCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workwatch",
		Subsystem: "reports",
		Name:      "computed_total",
		Help:      "Number of reports computed, labeled by report kind and data source.",
	}, []string{"report", "data_source"})
)

func init() {
	prometheus.MustRegister(snapshotPersistGauge, reportCounter)
}

// RecordSnapshotPersisted updates the persistence watermark gauge.
func RecordSnapshotPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	snapshotPersistGauge.Set(float64(ts.Unix()))
}

// RecordReportComputed counts a computed report by kind and data source.
func RecordReportComputed(report, dataSource string) {
	reportCounter.WithLabelValues(report, dataSource).Inc()
}
