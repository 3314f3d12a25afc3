// Package metrics registers the service's Prometheus collectors on the
// default registry; /metrics exposes them through promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftletter_saves_total",
		Help: "Canvas snapshot writes by result.",
	}, []string{"result"})

	saveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "giftletter_save_duration_seconds",
		Help:    "Latency of canvas snapshot writes.",
		Buckets: prometheus.DefBuckets,
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "giftletter_active_sessions",
		Help: "Gift canvases currently held in memory.",
	})

	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftletter_uploads_total",
		Help: "Blob uploads by result.",
	}, []string{"result"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveSave(err error, d time.Duration) {
	saves.WithLabelValues(result(err)).Inc()
	saveDuration.Observe(d.Seconds())
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ObserveUpload counts an upload; rejected covers rate-limited and oversized requests.
func ObserveUpload(err error, rejected bool) {
	if rejected {
		uploads.WithLabelValues("rejected").Inc()
		return
	}
	uploads.WithLabelValues(result(err)).Inc()
}
