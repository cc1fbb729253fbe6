package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leave"

type metrics struct {
	decisionsTotal     *prometheus.CounterVec
	deductionsTotal    *prometheus.CounterVec
	deductedDays       prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	dispatcherDropped  prometheus.Counter

	schedulerRunsTotal   *prometheus.CounterVec
	schedulerChanged     *prometheus.CounterVec
	schedulerRunDuration *prometheus.HistogramVec
	schedulerLastSuccess *prometheus.GaugeVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		decisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Stage decisions recorded, by stage and decision.",
		}, []string{"stage", "decision"}),
		deductionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_deductions_total",
			Help:      "Ledger deduction attempts, by result.",
		}, []string{"result"}),
		deductedDays: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_deducted_days_total",
			Help:      "Working days deducted from shared pools.",
		}),
		notificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries, by channel and result.",
		}, []string{"channel", "result"}),
		dispatcherDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_jobs_dropped_total",
			Help:      "Notification jobs dropped because the dispatcher queue was full.",
		}),
		schedulerRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Reconciliation job runs, by job and result.",
		}, []string{"job", "result"}),
		schedulerChanged: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_accounts_changed_total",
			Help:      "Employee accounts whose active flag a job changed.",
		}, []string{"job"}),
		schedulerRunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_run_duration_seconds",
			Help:      "Duration of reconciliation job runs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"job"}),
		schedulerLastSuccess: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
	}
})

func get() *metrics {
	return metricsSingleton()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveDecision(stage, decision string) {
	get().decisionsTotal.WithLabelValues(stage, decision).Inc()
}

func ObserveDeduction(result string, days float64) {
	m := get()
	m.deductionsTotal.WithLabelValues(result).Inc()
	if days > 0 {
		m.deductedDays.Add(days)
	}
}

func ObserveNotification(channel, result string) {
	get().notificationsTotal.WithLabelValues(channel, result).Inc()
}

func ObserveDroppedJob() {
	get().dispatcherDropped.Inc()
}

func ObserveSchedulerRun(job string, changed int, took time.Duration, err error) {
	m := get()
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.schedulerRunsTotal.WithLabelValues(job, result).Inc()
	m.schedulerRunDuration.WithLabelValues(job).Observe(took.Seconds())
	if changed > 0 {
		m.schedulerChanged.WithLabelValues(job).Add(float64(changed))
	}
	if err == nil {
		m.schedulerLastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}
