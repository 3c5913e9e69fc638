package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run statuses used as label values and in the status cache.
const (
	StatusOK                = "ok"
	StatusConnectionFailure = "connection_failure"
	StatusTransferFailure   = "transfer_failure"
	StatusCleanupFailure    = "cleanup_failure"
	StatusPanic             = "panic"
)

type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runsActive      *prometheus.GaugeVec
	transfersTotal  *prometheus.CounterVec
	filesTotal      *prometheus.CounterVec
	connectAttempts *prometheus.CounterVec
	lastSuccess     *prometheus.GaugeVec
}

// New registers the service metrics on reg, or the default registerer when reg is nil.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job runs by outcome.",
		}, []string{"job", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_run_duration_seconds",
			Help:      "Wall time of job runs, including connect backoff.",
			Buckets:   []float64{.5, 1, 5, 10, 30, 60, 120, 300, 900, 1800},
		}, []string{"job"}),
		runsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_runs_active",
			Help:      "1 while a run of the job is executing.",
		}, []string{"job"}),
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfer descriptors processed by kind and outcome (done, skipped, failed).",
		}, []string{"kind", "outcome"}),
		filesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_transferred_total",
			Help:      "Files moved by transfer kind.",
		}, []string{"kind"}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "SSH connect attempts by protocol and result.",
		}, []string{"protocol", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.runsActive,
		m.transfersTotal,
		m.filesTotal,
		m.connectAttempts,
		m.lastSuccess,
	)
	return m
}

func (m *Metrics) RunStarted(job string) {
	m.runsActive.WithLabelValues(job).Set(1)
}

func (m *Metrics) RunFinished(job, status string, d time.Duration) {
	m.runsActive.WithLabelValues(job).Set(0)
	m.runsTotal.WithLabelValues(job, status).Inc()
	m.runDuration.WithLabelValues(job).Observe(d.Seconds())
	if status == StatusOK {
		m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

func (m *Metrics) Transfer(kind, outcome string, files int) {
	m.transfersTotal.WithLabelValues(kind, outcome).Inc()
	if files > 0 {
		m.filesTotal.WithLabelValues(kind).Add(float64(files))
	}
}

func (m *Metrics) ConnectAttempt(protocol string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.connectAttempts.WithLabelValues(protocol, result).Inc()
}
