// Package metrics holds the Prometheus collectors of eduadmin.
//
// All methods are nil-safe so components can run without metrics (CLI one-shots,
// tests).
package metrics

import (
	"errors"
	"time"

	"eduadmin/internal/schedule"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "eduadmin"

type Metrics struct {
	Registry *prometheus.Registry

	schedulesGenerated *prometheus.CounterVec
	scheduleErrors     *prometheus.CounterVec
	storeSaves         *prometheus.CounterVec
	jobRuns            *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec

	students      prometheus.Gauge
	activeCourses prometheus.Gauge
}

// New registers every collector (plus the Go and process collectors) on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		schedulesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_generated_total",
			Help:      "Course schedules generated, by cadence.",
		}, []string{"cadence"}),
		scheduleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_errors_total",
			Help:      "Schedule generation failures, by reason.",
		}, []string{"reason"}),
		storeSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_saves_total",
			Help:      "Document saves, by result.",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Periodic job runs, by job and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Periodic job run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		students: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "students",
			Help:      "Students in the document.",
		}),
		activeCourses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_courses",
			Help:      "Courses not marked completed.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.schedulesGenerated,
		m.scheduleErrors,
		m.storeSaves,
		m.jobRuns,
		m.jobDuration,
		m.students,
		m.activeCourses,
	)
	return m
}

// ObserveSchedule counts one generator call.
func (m *Metrics) ObserveSchedule(c schedule.Cadence, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.scheduleErrors.WithLabelValues(scheduleReason(err)).Inc()
		return
	}
	kind := "intensive"
	if c != nil {
		kind = c.Kind()
	}
	m.schedulesGenerated.WithLabelValues(kind).Inc()
}

func scheduleReason(err error) string {
	switch {
	case errors.Is(err, schedule.ErrInvalidCadence):
		return "invalid_cadence"
	case errors.Is(err, schedule.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, schedule.ErrScheduleUnreachable):
		return "unreachable"
	default:
		return "other"
	}
}

func (m *Metrics) ObserveSave(err error) {
	if m == nil {
		return
	}
	m.storeSaves.WithLabelValues(result(err)).Inc()
}

// ObserveJob records one periodic job run. res is "ok", "error" or "skipped".
func (m *Metrics) ObserveJob(job, res string, took time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, res).Inc()
	if res != "skipped" {
		m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
	}
}

// SetCounts updates the document gauges.
func (m *Metrics) SetCounts(students, activeCourses int) {
	if m == nil {
		return
	}
	m.students.Set(float64(students))
	m.activeCourses.Set(float64(activeCourses))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
