package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eduadmin/internal/eventbus"
	"eduadmin/internal/model"
	"eduadmin/internal/schedule"
	"eduadmin/internal/store"
	logx "eduadmin/pkg/logx"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Observer receives registry measurements. *metrics.Metrics implements it.
type Observer interface {
	ObserveSchedule(c schedule.Cadence, err error)
	ObserveSave(err error)
	SetCounts(students, activeCourses int)
}

type nopObserver struct{}

func (nopObserver) ObserveSchedule(schedule.Cadence, error) {}
func (nopObserver) ObserveSave(error)                       {}
func (nopObserver) SetCounts(int, int)                      {}

// Options configure a Registry. Only Store is required.
type Options struct {
	Store    store.Store
	Bus      eventbus.Bus
	Log      logx.Logger
	Observer Observer

	// Now and Location decide "today". Defaults: time.Now and time.Local.
	Now      func() time.Time
	Location *time.Location

	DefaultLessons int    // default 15
	DefaultRule    string // intensive terms; default 上6天休1天
}

// Registry owns the application document. Every mutation is validated,
// applied to a copy, persisted, and only then made visible.
type Registry struct {
	mu   sync.RWMutex
	data *model.Data

	store    store.Store
	bus      eventbus.Bus
	log      logx.Logger
	obs      Observer
	validate *validator.Validate
	now      func() time.Time
	loc      *time.Location
	lessons  int
	rule     string
	newID    func() string
}

// New loads the document from opts.Store. An empty store is seeded with
// model.Default and saved.
func New(ctx context.Context, opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, errors.New("registry: store required")
	}
	r := &Registry{
		store:    opts.Store,
		bus:      opts.Bus,
		log:      opts.Log,
		obs:      opts.Observer,
		validate: newValidator(),
		now:      opts.Now,
		loc:      opts.Location,
		lessons:  opts.DefaultLessons,
		rule:     opts.DefaultRule,
		newID:    uuid.NewString,
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	r.log = r.log.With(logx.String("comp", "registry"))
	if r.bus == nil {
		r.bus = eventbus.New()
	}
	if r.obs == nil {
		r.obs = nopObserver{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.loc == nil {
		r.loc = time.Local
	}
	if r.lessons <= 0 {
		r.lessons = 15
	}
	if r.rule == "" {
		r.rule = "上6天休1天"
	}

	data, ok, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if !ok {
		data = model.Default(r.Today())
		if err := r.store.Save(ctx, data); err != nil {
			r.obs.ObserveSave(err)
			return nil, fmt.Errorf("seed: %w", err)
		}
		r.obs.ObserveSave(nil)
		r.log.Info("document seeded with defaults")
	}
	data.Normalize()
	r.data = data
	r.updateCounts()
	return r, nil
}

// Bus is the change-notification bus.
func (r *Registry) Bus() eventbus.Bus { return r.bus }

// Today is the current calendar date in the configured location.
func (r *Registry) Today() time.Time { return schedule.Day(r.now().In(r.loc)) }

// change describes one mutation for audit and notification.
type change struct {
	event  string
	action string
	target string
}

// mutate runs fn on a copy of the document, persists the copy and swaps it in.
// On any error the current document is left untouched.
func (r *Registry) mutate(ctx context.Context, ch change, fn func(d *model.Data) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	next := r.data.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.Normalize()

	err := r.store.Save(ctx, next)
	r.obs.ObserveSave(err)
	r.audit(ctx, ch, start, err)
	if err != nil {
		r.log.Warn("save failed", logx.String("action", ch.action), logx.String("target", ch.target), logx.Err(err))
		return fmt.Errorf("save: %w", err)
	}
	r.data = next
	r.updateCountsLocked()
	r.bus.Publish(eventbus.Event{Type: ch.event, Action: ch.action, Target: ch.target, Time: r.now()})
	r.log.Debug("document updated", logx.String("action", ch.action), logx.String("target", ch.target),
		logx.Duration("took", time.Since(start)))
	return nil
}

func (r *Registry) audit(ctx context.Context, ch change, start time.Time, saveErr error) {
	e := store.AuditEntry{
		At:     r.now(),
		Action: ch.event + "." + ch.action,
		Target: ch.target,
		OK:     saveErr == nil,
		TookMS: time.Since(start).Milliseconds(),
	}
	if saveErr != nil {
		e.Error = saveErr.Error()
	}
	if err := r.store.AppendAudit(ctx, e); err != nil {
		r.log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}

func (r *Registry) updateCounts() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.updateCountsLocked()
}

func (r *Registry) updateCountsLocked() {
	active := 0
	for _, c := range r.data.Courses {
		if !c.IsCompleted {
			active++
		}
	}
	r.obs.SetCounts(len(r.data.Students), active)
}

// view runs fn under the read lock.
func (r *Registry) view(fn func(d *model.Data)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.data)
}

// ---- Dashboard & data ----

// Stats summarizes the document for the dashboard.
type Stats struct {
	Students         int                `json:"students"`
	Enrolled         int                `json:"enrolled"`
	ActiveCourses    int                `json:"activeCourses"`
	CompletedCourses int                `json:"completedCourses"`
	Grades           map[string]int     `json:"grades"`
	Types            map[model.Term]int `json:"types"`
}

func (r *Registry) Stats() Stats {
	s := Stats{Grades: map[string]int{}, Types: map[model.Term]int{}}
	r.view(func(d *model.Data) {
		s.Students = len(d.Students)
		for _, st := range d.Students {
			if st.IsEnrolled {
				s.Enrolled++
			}
			if st.Grade != "" {
				s.Grades[st.Grade]++
			}
		}
		for _, c := range d.Courses {
			if c.IsCompleted {
				s.CompletedCourses++
			} else {
				s.ActiveCourses++
			}
			s.Types[c.Type]++
		}
	})
	return s
}

// Snapshot returns a deep copy of the document.
func (r *Registry) Snapshot() *model.Data {
	var out *model.Data
	r.view(func(d *model.Data) { out = d.Clone() })
	return out
}

// Replace imports data wholesale.
func (r *Registry) Replace(ctx context.Context, data *model.Data) error {
	if data == nil {
		return invalid("data", "is required")
	}
	in := data.Clone()
	return r.mutate(ctx, change{eventbus.DataReplaced, "replace", ""}, func(d *model.Data) error {
		for i := range in.Courses {
			if !in.Courses[i].Type.Valid() {
				return invalid("courses", "course %q has unknown type %q", in.Courses[i].ID, in.Courses[i].Type)
			}
		}
		in.RecomputeEnrollment()
		*d = *in
		return nil
	})
}

// Reset restores the default document.
func (r *Registry) Reset(ctx context.Context) error {
	def := model.Default(r.Today())
	return r.mutate(ctx, change{eventbus.DataReplaced, "reset", ""}, func(d *model.Data) error {
		*d = *def
		return nil
	})
}
