// Package app wires configuration, logging, storage, the registry, periodic
// jobs and the ops endpoint into one process.
//
// Open is enough for one-shot CLI commands; "serve" additionally calls Start
// and Stop.
package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"eduadmin/internal/config"
	"eduadmin/internal/eventbus"
	"eduadmin/internal/jobs"
	"eduadmin/internal/metrics"
	"eduadmin/internal/ops"
	"eduadmin/internal/registry"
	rtsup "eduadmin/internal/runtime/supervisor"
	"eduadmin/internal/store"
	logx "eduadmin/pkg/logx"
)

const (
	JobDigest = "lesson-digest"
	JobBackup = "backup"
)

type App struct {
	cfgm *config.Manager

	log     logx.Logger
	logs    *logx.Service
	bus     eventbus.Bus
	store   store.Store
	metrics *metrics.Metrics
	reg     *registry.Registry
	jobs    *jobs.Service
	ops     *ops.Service

	sup *rtsup.Supervisor

	// now is overridable in tests.
	now func() time.Time
}

// Options tweak Open. Zero values use the config file.
type Options struct {
	// Store replaces the configured store (tests).
	Store store.Store
	// Now replaces the wall clock.
	Now func() time.Time
}

// Open loads the config at cfgPath (missing file = defaults), opens the store
// and loads the document.
func Open(ctx context.Context, cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	st := opts.Store
	if st == nil {
		sc, err := mapStoreConfig(cfg)
		if err != nil {
			return nil, err
		}
		if st, err = store.Open(sc, root.With(logx.String("comp", "store"))); err != nil {
			return nil, err
		}
		log.Debug("store opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	m := metrics.New()
	bus := eventbus.New()
	reg, err := registry.New(ctx, registry.Options{
		Store:          st,
		Bus:            bus,
		Log:            root,
		Observer:       m,
		Now:            now,
		Location:       loc,
		DefaultLessons: cfg.Calendar.DefaultLessons,
		DefaultRule:    cfg.Calendar.DefaultRule,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	jc, err := mapJobsConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	oc, err := mapOpsConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   st,
		metrics: m,
		reg:     reg,
		jobs:    jobs.New(jc, root.With(logx.String("comp", "jobs")), m),
		now:     now,
	}
	a.ops = ops.New(oc, root, ops.WithGatherer(m.Registry), ops.WithHealth(a.health), ops.WithLogs(logs.Recent))
	if err := a.registerJobs(cfg); err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) Registry() *registry.Registry { return a.reg }
func (a *App) Config() *config.Config       { return a.cfgm.Get() }
func (a *App) ConfigPath() string           { return a.cfgm.Path() }
func (a *App) Jobs() *jobs.Service          { return a.jobs }
func (a *App) Ops() *ops.Service            { return a.ops }
func (a *App) Logger() logx.Logger          { return a.log }

// Audit returns up to limit recent audit entries, newest first.
func (a *App) Audit(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	ar, ok := a.store.(store.AuditReader)
	if !ok {
		return nil, fmt.Errorf("storage driver does not keep an audit log")
	}
	return ar.RecentAudit(ctx, limit)
}

// Close releases the store and log file. It is for one-shot commands; a
// started App is closed by Stop.
func (a *App) Close() error {
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}

// Backup writes one backup into the configured directory now.
func (a *App) Backup(ctx context.Context) (string, error) {
	cfg := a.cfgm.Get()
	return jobs.WriteBackup(ctx, cfg.Jobs.Backup.Dir, cfg.Jobs.Backup.Keep, a.snapshotJSON, a.now())
}

func (a *App) snapshotJSON(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := store.EncodeDocument(&buf, a.reg.Snapshot()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *App) registerJobs(cfg *config.Config) error {
	if err := a.jobs.Add(JobDigest, cfg.Jobs.Digest.Schedule, a.digest); err != nil {
		return fmt.Errorf("jobs.digest.schedule: %w", err)
	}
	backup := jobs.Backup(cfg.Jobs.Backup.Dir, cfg.Jobs.Backup.Keep, a.snapshotJSON, a.now)
	if err := a.jobs.Add(JobBackup, cfg.Jobs.Backup.Schedule, backup); err != nil {
		return fmt.Errorf("jobs.backup.schedule: %w", err)
	}
	return nil
}

// digest logs today's lessons in slot order.
func (a *App) digest(ctx context.Context) error {
	today := a.reg.Today()
	lessons := a.reg.LessonsOn(today)
	day := today.Format("2006-01-02")
	if len(lessons) == 0 {
		a.log.Info("no lessons today", logx.String("date", day))
		return nil
	}
	for _, l := range lessons {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.log.Info("lesson today",
			logx.String("date", day),
			logx.String("course", l.Course.Name),
			logx.String("slot", l.Course.TimeSlot),
			logx.String("lesson", fmt.Sprintf("%d/%d", l.Number(), len(l.Course.Schedule))),
			logx.Int("students", len(l.Course.EnrolledStudents)),
			logx.Bool("completed", l.Course.IsCompleted),
		)
	}
	a.log.Info("lesson digest", logx.String("date", day), logx.Int("lessons", len(lessons)))
	return nil
}

func (a *App) health(ctx context.Context) (map[string]any, error) {
	st := a.reg.Stats()
	return map[string]any{
		"students":       st.Students,
		"active_courses": st.ActiveCourses,
		"jobs":           a.jobs.Entries(),
		"bus_dropped":    a.bus.Dropped(),
	}, nil
}

// validateConfig is the hot-reload validator; config.Validate already ran.
func validateConfig(ctx context.Context, cfg *config.Config) error {
	if _, err := mapStoreConfig(cfg); err != nil {
		return err
	}
	if _, err := mapJobsConfig(cfg); err != nil {
		return err
	}
	if _, err := mapOpsConfig(cfg); err != nil {
		return err
	}
	if _, err := jobs.ParseSchedule(cfg.Jobs.Digest.Schedule); err != nil {
		return fmt.Errorf("jobs.digest.schedule: %w", err)
	}
	if _, err := jobs.ParseSchedule(cfg.Jobs.Backup.Schedule); err != nil {
		return fmt.Errorf("jobs.backup.schedule: %w", err)
	}
	return nil
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err is the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs jobs, the ops endpoint and the config watcher until Stop.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetValidator(validateConfig)

	if a.jobs.Enabled() {
		a.jobs.Start(a.sup.Context())
	}
	if a.ops.Enabled() {
		if err := a.ops.Start(a.sup.Context()); err != nil {
			return fmt.Errorf("ops: %w", err)
		}
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e := <-events:
				a.log.Debug("event", logx.String("type", e.Type), logx.String("action", e.Action), logx.String("target", e.Target))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts to the latest config.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.Bool("jobs", a.jobs.Enabled()),
		logx.Bool("ops", a.ops.Enabled()),
		logx.String("ops_addr", a.ops.Addr()),
	)
	return nil
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := logx.String("changed", strings.Join(sections, ","))
	a.log.Debug("config change summary", append([]logx.Field{changed}, attrs...)...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(next))
		case "storage", "calendar":
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		case "jobs":
			a.applyJobs(ctx, next)
		case "ops":
			oc, err := mapOpsConfig(next)
			if err != nil {
				a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
				continue
			}
			if err := a.ops.Reconfigure(ctx, oc); err != nil {
				a.log.Error("ops reconfigure failed", logx.Err(err))
			}
		}
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Action: "reload", Target: strings.Join(sections, ","), Time: a.now()})
	a.log.Info("config reloaded", changed)
}

func (a *App) applyJobs(ctx context.Context, next *config.Config) {
	jc, err := mapJobsConfig(next)
	if err != nil {
		a.log.Warn("invalid jobs config; keeping previous", logx.Err(err))
		return
	}
	wasEnabled := a.jobs.Enabled()
	a.jobs.Apply(jc)
	if err := a.registerJobs(next); err != nil {
		a.log.Warn("job registration failed", logx.Err(err))
	}
	switch {
	case wasEnabled && !jc.Enabled:
		a.log.Info("jobs disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.jobs.Stop(stopCtx)
		cancel()
	case !wasEnabled && jc.Enabled:
		a.log.Info("jobs enabled via config")
		a.jobs.Start(ctx)
	}
}

// Stop shuts components down in order, each step bounded so one component
// cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	a.step(ctx, "jobs", 5*time.Second, func(c context.Context) error { a.jobs.Stop(c); return nil })
	a.step(ctx, "ops", 2*time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "store", time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
