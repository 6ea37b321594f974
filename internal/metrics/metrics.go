package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hamed0406/uptimesli/internal/domain"
)

var (
	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptime_probes_total",
			Help: "Probes executed, by outcome class and up flag",
		},
		[]string{"class", "up"},
	)

	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uptime_probe_latency_seconds",
			Help:    "Recorded probe latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"class"},
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uptime_persist_errors_total",
			Help: "History appends that failed",
		},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptime_alerts_total",
			Help: "Status-change alerts, by direction and delivery result",
		},
		[]string{"direction", "result"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uptime_sweep_duration_seconds",
			Help:    "Wall time of one health-check sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	TargetSLI = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uptime_target_sli_percent",
			Help: "Latest 30-day SLI per target",
		},
		[]string{"target_id", "target_name"},
	)
)

func ObserveProbe(r domain.CheckResult) {
	class := r.Class()
	ProbeTotal.WithLabelValues(class, strconv.FormatBool(r.Up)).Inc()
	ProbeLatency.WithLabelValues(class).Observe(r.LatencyMS / 1000)
}

func ObserveAlert(up bool, err error) {
	dir := "down"
	if up {
		dir = "up"
	}
	res := "sent"
	if err != nil {
		res = "failed"
	}
	AlertsTotal.WithLabelValues(dir, res).Inc()
}

func ObserveSweep(d time.Duration) { SweepDuration.Observe(d.Seconds()) }

func ObserveSLI(r domain.SliRecord) {
	TargetSLI.WithLabelValues(string(r.TargetID), r.TargetName).Set(r.SLI)
}

// ForgetTarget drops every per-target series for a deleted target and
// returns how many were removed.
func ForgetTarget(id domain.TargetID) int {
	return TargetSLI.DeletePartialMatch(prometheus.Labels{"target_id": string(id)})
}
