// Package scheduler runs the pipeline's background jobs on fixed cadences.
// Each job is non-reentrant: a tick that arrives while the previous run is
// still going is skipped, not queued. Failures are logged and counted but
// never stop the schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is one scheduled unit of work. The context carries the job's
// deadline; now is the tick time.
type JobFunc func(ctx context.Context, now time.Time) error

type job struct {
	name    string
	timeout time.Duration
	fn      JobFunc

	running sync.Mutex

	mu          sync.Mutex
	lastRun     time.Time
	lastSuccess time.Time
	lastError   string
	runs        int
	failures    int
	skips       int
}

// JobHealth is a point-in-time snapshot of one job's record.
type JobHealth struct {
	Name        string    `json:"name"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	Runs        int       `json:"runs"`
	Failures    int       `json:"failures"`
	Skips       int       `json:"skips"`
}

// Scheduler owns the cron runner and the job registry.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
	base context.Context
}

func New(logger *slog.Logger) *Scheduler {
	l := logger.With("component", "scheduler")
	// Cron fields are interpreted in UTC so the nightly maintenance window
	// does not drift with the host timezone.
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cronLogger{l}))),
		logger: l,
		jobs:   make(map[string]*job),
		base:   context.Background(),
	}
}

// AddEvery schedules a job on a fixed interval. The job's deadline is twice
// its cadence, so a slow run is cancelled before it can pile up more than
// one skipped tick.
func (s *Scheduler) AddEvery(name string, every time.Duration, fn JobFunc) error {
	if every <= 0 {
		return fmt.Errorf("job %s: non-positive interval %s", name, every)
	}
	return s.add(name, fmt.Sprintf("@every %s", every), 2*every, fn)
}

// AddCron schedules a job on a standard 5-field cron spec with an explicit
// deadline.
func (s *Scheduler) AddCron(name, spec string, timeout time.Duration, fn JobFunc) error {
	return s.add(name, spec, timeout, fn)
}

func (s *Scheduler) add(name, spec string, timeout time.Duration, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s: already registered", name)
	}

	j := &job{name: name, timeout: timeout, fn: fn}
	if _, err := s.cron.AddFunc(spec, func() { s.runJob(j, time.Now()) }); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.jobs[name] = j
	s.logger.Info("job registered", "job", name, "schedule", spec, "timeout", timeout)
	return nil
}

// Start begins dispatching ticks. The context bounds every job run on top
// of its own deadline.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", n)
}

// Stop halts dispatch and waits for in-flight runs started by cron.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes a registered job immediately, outside its schedule. Used
// for the startup kick so the pipeline does not idle until the first tick.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s: not registered", name)
	}
	s.runJob(j, time.Now())
	return nil
}

func (s *Scheduler) runJob(j *job, now time.Time) {
	if !j.running.TryLock() {
		j.mu.Lock()
		j.skips++
		j.mu.Unlock()
		s.logger.Warn("job still running, tick skipped", "job", j.name)
		return
	}
	defer j.running.Unlock()

	s.mu.Lock()
	base := s.base
	s.mu.Unlock()

	ctx := base
	cancel := context.CancelFunc(func() {})
	if j.timeout > 0 {
		ctx, cancel = context.WithTimeout(base, j.timeout)
	}
	defer cancel()

	start := time.Now()
	err := j.fn(ctx, now)
	elapsed := time.Since(start)

	j.mu.Lock()
	j.lastRun = now
	j.runs++
	if err != nil {
		j.failures++
		j.lastError = err.Error()
	} else {
		j.lastSuccess = now
		j.lastError = ""
	}
	j.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", j.name, "elapsed", elapsed, "error", err)
		return
	}
	s.logger.Debug("job completed", "job", j.name, "elapsed", elapsed)
}

// Health returns a snapshot of every job, sorted by name.
func (s *Scheduler) Health() []JobHealth {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobHealth, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		out = append(out, JobHealth{
			Name:        j.name,
			LastRun:     j.lastRun,
			LastSuccess: j.lastSuccess,
			LastError:   j.lastError,
			Runs:        j.runs,
			Failures:    j.failures,
			Skips:       j.skips,
		})
		j.mu.Unlock()
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// cronLogger adapts slog to the cron logger interface so panics recovered
// by the cron chain land in the application log.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any)             { c.l.Debug(msg, kv...) }
func (c cronLogger) Error(err error, msg string, kv ...any) { c.l.Error(msg, append(kv, "error", err)...) }
