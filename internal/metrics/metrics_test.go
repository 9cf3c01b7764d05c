package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"eduadmin/internal/schedule"
)

// value reads a counter or gauge sample from the registry.
func value(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, s := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range s.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			return s.GetCounter().GetValue() + s.GetGauge().GetValue()
		}
	}
	return 0
}

func TestObserveSchedule(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveSchedule(schedule.Weekly{Day: time.Saturday}, nil)
	m.ObserveSchedule(schedule.Weekly{Day: time.Sunday}, nil)
	m.ObserveSchedule(nil, nil)
	m.ObserveSchedule(nil, fmt.Errorf("x: %w", schedule.ErrScheduleUnreachable))

	if got := value(t, m, "eduadmin_schedules_generated_total", map[string]string{"cadence": "weekly"}); got != 2 {
		t.Fatalf("weekly = %v, want 2", got)
	}
	if got := value(t, m, "eduadmin_schedules_generated_total", map[string]string{"cadence": "intensive"}); got != 1 {
		t.Fatalf("intensive = %v, want 1", got)
	}
	if got := value(t, m, "eduadmin_schedule_errors_total", map[string]string{"reason": "unreachable"}); got != 1 {
		t.Fatalf("unreachable = %v, want 1", got)
	}
}

func TestObserveJobAndSave(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveJob("backup", "ok", 10*time.Millisecond)
	m.ObserveJob("backup", "skipped", 0)
	m.ObserveSave(nil)
	m.ObserveSave(errors.New("disk full"))
	m.SetCounts(6, 1)

	if got := value(t, m, "eduadmin_job_runs_total", map[string]string{"job": "backup", "result": "ok"}); got != 1 {
		t.Fatalf("job ok = %v, want 1", got)
	}
	if got := value(t, m, "eduadmin_store_saves_total", map[string]string{"result": "error"}); got != 1 {
		t.Fatalf("save errors = %v, want 1", got)
	}
	if got := value(t, m, "eduadmin_students", nil); got != 6 {
		t.Fatalf("students = %v, want 6", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveSchedule(nil, nil)
	m.ObserveSave(nil)
	m.ObserveJob("x", "ok", time.Second)
	m.SetCounts(1, 1)
}
