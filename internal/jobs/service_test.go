package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logx "eduadmin/pkg/logx"
)

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (o *recordingObserver) ObserveJob(job, result string, _ time.Duration) {
	o.mu.Lock()
	o.seen = append(o.seen, job+":"+result)
	o.mu.Unlock()
}

func (o *recordingObserver) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.seen...)
}

func TestAddRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	ok := func(context.Context) error { return nil }
	tests := []struct {
		name, job, spec string
		fn              Job
	}{
		{name: "empty name", job: " ", spec: "@daily", fn: ok},
		{name: "nil job", job: "x", spec: "@daily"},
		{name: "bad schedule", job: "x", spec: "soon", fn: ok},
		{name: "bad cron", job: "x", spec: "61 * * * *", fn: ok},
	}
	for _, tt := range tests {
		if err := s.Add(tt.job, tt.spec, tt.fn); err == nil {
			t.Fatalf("%s: Add succeeded, want error", tt.name)
		}
	}
	if len(s.Entries()) != 0 {
		t.Fatalf("Entries = %v, want none", s.Entries())
	}
}

func TestAddUpsertsAndRemove(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	noop := func(context.Context) error { return nil }
	if err := s.Add("backup", "@daily", noop); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("backup", "6h", noop); err != nil {
		t.Fatalf("Add upsert: %v", err)
	}
	if err := s.Add("digest", "0 7 * * *", noop); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := s.Entries()
	if len(got) != 2 || got[0].Name != "backup" || got[0].Schedule != "@every 6h0m0s" || got[1].Name != "digest" {
		t.Fatalf("Entries = %+v", got)
	}
	if !s.Remove("backup") || s.Remove("backup") {
		t.Fatal("Remove should report presence once")
	}
	if len(s.Entries()) != 1 {
		t.Fatalf("Entries after remove = %+v", s.Entries())
	}
}

func TestRunNowResults(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	s := New(Config{HistorySize: 2}, logx.Nop(), obs)
	boom := errors.New("boom")
	_ = s.Add("ok", "1h", func(context.Context) error { return nil })
	_ = s.Add("fail", "1h", func(context.Context) error { return boom })
	_ = s.Add("panic", "1h", func(context.Context) error { panic("bad") })

	if r, err := s.RunNow(context.Background(), "ok"); err != nil || r.Result != ResultOK {
		t.Fatalf("RunNow(ok) = %+v, %v", r, err)
	}
	if r, err := s.RunNow(context.Background(), "fail"); err == nil || r.Result != ResultError || r.Err != "boom" {
		t.Fatalf("RunNow(fail) = %+v, %v", r, err)
	}
	if r, err := s.RunNow(context.Background(), "panic"); err == nil || r.Result != ResultError {
		t.Fatalf("RunNow(panic) = %+v, %v", r, err)
	}
	if _, err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("RunNow(missing) error = %v, want ErrUnknownJob", err)
	}

	h := s.History()
	if len(h) != 2 || h[0].Job != "fail" || h[1].Job != "panic" {
		t.Fatalf("History = %+v, want last two runs", h)
	}
	if got := obs.list(); len(got) != 3 || got[0] != "ok:ok" || got[1] != "fail:error" {
		t.Fatalf("observed = %v", got)
	}
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()
	s := New(Config{Timeout: 20 * time.Millisecond}, logx.Nop(), nil)
	_ = s.Add("slow", "1h", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r, err := s.RunNow(context.Background(), "slow")
	if err == nil || r.Result != ResultError {
		t.Fatalf("RunNow(slow) = %+v, %v; want deadline error", r, err)
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	started := make(chan struct{})
	release := make(chan struct{})
	_ = s.Add("long", "1h", func(context.Context) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan Run, 1)
	go func() {
		r, _ := s.RunNow(context.Background(), "long")
		done <- r
	}()
	<-started
	r, err := s.RunNow(context.Background(), "long")
	if err != nil || r.Result != ResultSkipped {
		t.Fatalf("second RunNow = %+v, %v; want skipped", r, err)
	}
	close(release)
	if r := <-done; r.Result != ResultOK {
		t.Fatalf("first run = %+v", r)
	}
}

func TestStartTriggersAndStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop(), nil)
	var runs atomic.Int32
	_ = s.Add("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	s.Start(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never triggered")
	}
	if e := s.Entries(); len(e) != 1 || e[0].Next.IsZero() {
		t.Fatalf("Entries = %+v, want next run set", e)
	}

	s.Apply(Config{Enabled: true, Timezone: "Asia/Shanghai"})
	if e := s.Entries(); len(e) != 1 || e[0].Next.IsZero() {
		t.Fatalf("Entries after tz change = %+v", e)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
	if e := s.Entries(); !e[0].Next.IsZero() {
		t.Fatalf("Next after stop = %v, want zero", e[0].Next)
	}
}

func TestBackupWritesAndPrunes(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "backups")
	snap := func(context.Context) ([]byte, error) { return []byte(`{"students":[]}`), nil }
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		p, err := WriteBackup(context.Background(), dir, 2, snap, base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("WriteBackup #%d: %v", i, err)
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("backup %s missing: %v", p, err)
		}
	}
	files, err := ListBackups(dir)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	want := []string{
		filepath.Join(dir, "data-20250301-080300.json"),
		filepath.Join(dir, "data-20250301-080200.json"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("ListBackups = %v, want %v", files, want)
	}

	failing := Backup(dir, 2, func(context.Context) ([]byte, error) { return nil, errors.New("store down") }, nil)
	if err := failing(context.Background()); err == nil {
		t.Fatal("expected snapshot error")
	}
	if files, _ := ListBackups(filepath.Join(dir, "absent")); len(files) != 0 {
		t.Fatalf("ListBackups(absent) = %v", files)
	}
}
