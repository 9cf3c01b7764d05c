package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logx "eduadmin/pkg/logx"

	"github.com/robfig/cron/v3"
)

var ErrUnknownJob = errors.New("unknown job")

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Config controls the job service.
type Config struct {
	Enabled     bool
	Timezone    string        // IANA TZ; empty means local
	Timeout     time.Duration // per run; 0 disables
	HistorySize int           // default 50
}

// Observer receives run results (metrics).
type Observer interface {
	ObserveJob(job, result string, took time.Duration)
}

// Run results.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Run is one recorded execution.
type Run struct {
	Job    string        `json:"job"`
	Start  time.Time     `json:"start"`
	Took   time.Duration `json:"took"`
	Result string        `json:"result"`
	Err    string        `json:"err,omitempty"`
}

// Entry describes a registered job.
type Entry struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev"`
}

type def struct {
	name    string
	spec    ParsedSpec
	job     Job
	entryID cron.EntryID
	running atomic.Bool
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	obs Observer

	parser cron.Parser
	c      *cron.Cron
	loc    *time.Location
	ctx    context.Context
	cancel context.CancelFunc

	defs map[string]*def

	hmu     sync.Mutex
	history []Run
}

func New(cfg Config, log logx.Logger, obs Observer) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		obs: obs,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:   map[string]*def{},
	}
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Add registers job under name, replacing any job with the same name.
func (s *Service) Add(name, schedule string, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if ps.Kind == SpecCron {
		if _, err := s.parser.Parse(ps.Cron); err != nil {
			return fmt.Errorf("%s: invalid cron %q: %w", name, ps.Cron, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.defs[name]; ok && s.c != nil {
		s.c.Remove(old.entryID)
	}
	d := &def{name: name, spec: ps, job: job}
	s.defs[name] = d
	if s.c != nil {
		if err := s.addCronLocked(d); err != nil {
			return err
		}
	}
	s.log.Debug("job registered", logx.String("name", name), logx.String("spec", ps.String()))
	return nil
}

// Remove unregisters name. It reports whether the name existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) addCronLocked(d *def) error {
	run := cron.FuncJob(func() { s.execute(s.ctx, d) })
	if d.spec.Kind == SpecInterval {
		d.entryID = s.c.Schedule(cron.Every(d.spec.Every), run)
		return nil
	}
	sched, err := s.parser.Parse(d.spec.Cron)
	if err != nil {
		return fmt.Errorf("%s: invalid cron %q: %w", d.name, d.spec.Cron, err)
	}
	d.entryID = s.c.Schedule(sched, run)
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Start begins triggering registered jobs. Runs are canceled when ctx is done
// or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, d := range s.defs {
		if err := s.addCronLocked(d); err != nil {
			s.log.Error("job register failed", logx.String("name", d.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.defs)))
}

// Stop stops triggering and waits (bounded by ctx) for running jobs.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	done := c.Stop()
	cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("stop deadline reached; jobs still running")
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Apply updates the config. A timezone change restarts the cron runner.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	running := s.c != nil
	ctx := s.ctx
	s.mu.Unlock()

	if running && oldTZ != strings.TrimSpace(cfg.Timezone) {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.Stop(stopCtx)
		cancel()
		// Start derives a fresh run context from the parent of the old one.
		s.Start(context.WithoutCancel(ctx))
	}
}

// RunNow executes name immediately in the calling goroutine.
func (s *Service) RunNow(ctx context.Context, name string) (Run, error) {
	s.mu.Lock()
	d, ok := s.defs[name]
	s.mu.Unlock()
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	r := s.execute(ctx, d)
	if r.Err != "" {
		return r, errors.New(r.Err)
	}
	return r, nil
}

func (s *Service) execute(ctx context.Context, d *def) (r Run) {
	r = Run{Job: d.name, Start: time.Now()}
	if ctx == nil {
		ctx = context.Background()
	}
	if !d.running.CompareAndSwap(false, true) {
		r.Result = ResultSkipped
		s.log.Debug("job skipped; previous run still active", logx.String("job", d.name))
		s.record(r)
		return r
	}
	defer d.running.Store(false)

	s.mu.Lock()
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("job panicked", logx.String("job", d.name), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return d.job(runCtx)
	}()

	r.Took = time.Since(r.Start)
	if err != nil {
		r.Result = ResultError
		r.Err = err.Error()
		s.log.Warn("job failed", logx.String("job", d.name), logx.Duration("took", r.Took), logx.Err(err))
	} else {
		r.Result = ResultOK
		s.log.Debug("job done", logx.String("job", d.name), logx.Duration("took", r.Took))
	}
	s.record(r)
	return r
}

func (s *Service) record(r Run) {
	if s.obs != nil {
		s.obs.ObserveJob(r.Job, r.Result, r.Took)
	}
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	s.hmu.Lock()
	s.history = append(s.history, r)
	if over := len(s.history) - limit; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	s.hmu.Unlock()
}

// History returns recorded runs, oldest first.
func (s *Service) History() []Run {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]Run(nil), s.history...)
}

// Entries lists registered jobs sorted by name. Next/Prev are zero until Start.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.defs))
	for _, d := range s.defs {
		e := Entry{Name: d.name, Schedule: d.spec.String()}
		if s.c != nil {
			ce := s.c.Entry(d.entryID)
			e.Next, e.Prev = ce.Next, ce.Prev
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
