// Package cron runs named maintenance jobs on cron schedules.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const stopTimeout = 5 * time.Second

// parser accepts six-field expressions (with seconds) and descriptors such
// as @hourly.
var parser = rcron.NewParser(
	rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor,
)

// Job is a named task. Run returns a short summary for the log.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) (string, error)
}

// JobState is a snapshot of a registered job.
type JobState struct {
	Name       string
	Schedule   string
	Runs       int
	LastRun    time.Time
	LastStatus string
	LastError  string
	Next       time.Time
}

type entry struct {
	job   Job
	id    rcron.EntryID
	state JobState
}

type Service struct {
	mu      sync.Mutex
	jobs    map[string]*entry
	cron    *rcron.Cron
	clock   clockwork.Clock
	logger  *zap.Logger
	runCtx  context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	running sync.WaitGroup
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewService(logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		jobs:   make(map[string]*entry),
		clock:  clockwork.NewRealClock(),
		logger: logger.Named("cron"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateSchedule reports whether expr parses as a schedule.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return nil
}

// Add registers job. Jobs added after Start are scheduled immediately.
func (s *Service) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("cron job needs a name and a run func")
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("cron job %s already registered", job.Name)
	}
	e := &entry{job: job, state: JobState{Name: job.Name, Schedule: job.Schedule}}
	s.jobs[job.Name] = e
	if s.cron != nil {
		return s.register(e)
	}
	return nil
}

// Remove unregisters a job by name.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return false
	}
	if s.cron != nil && e.id != 0 {
		s.cron.Remove(e.id)
	}
	delete(s.jobs, name)
	return true
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	stopCh := make(chan struct{})

	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("cron service already started")
	}
	s.runCtx = runCtx
	s.cancel = cancel
	s.stopCh = stopCh
	s.cron = rcron.New(rcron.WithParser(parser))
	for _, e := range s.jobs {
		if err := s.register(e); err != nil {
			s.logger.Warn("register job", zap.String("job", e.job.Name), zap.Error(err))
		}
	}
	n := len(s.jobs)
	s.cron.Start()
	s.mu.Unlock()

	s.logger.Info("started", zap.Int("jobs", n))

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
		}
	}()
	return nil
}

// register schedules e on the running cron. Callers hold s.mu.
func (s *Service) register(e *entry) error {
	name, ctx := e.job.Name, s.runCtx
	id, err := s.cron.AddFunc(e.job.Schedule, func() {
		_, _ = s.execute(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("register %s (%s): %w", name, e.job.Schedule, err)
	}
	e.id = id
	return nil
}

// RunNow executes the named job outside its schedule.
func (s *Service) RunNow(ctx context.Context, name string) (string, error) {
	return s.execute(ctx, name)
}

func (s *Service) execute(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("job %s not found", name)
	}
	job := e.job
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	start := s.clock.Now()
	result, err := job.Run(ctx)

	s.mu.Lock()
	e.state.Runs++
	e.state.LastRun = start
	if err != nil {
		e.state.LastStatus = "error"
		e.state.LastError = err.Error()
	} else {
		e.state.LastStatus = "ok"
		e.state.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("job failed", zap.String("job", name), zap.Error(err))
	} else {
		s.logger.Info("job done",
			zap.String("job", name),
			zap.String("result", truncate(result, 100)),
			zap.Duration("elapsed", s.clock.Since(start)),
		)
	}
	return result, err
}

// Jobs returns job snapshots sorted by name.
func (s *Service) Jobs() []JobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobState, 0, len(s.jobs))
	for _, e := range s.jobs {
		st := e.state
		if s.cron != nil && e.id != 0 {
			st.Next = s.cron.Entry(e.id).Next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stop halts scheduling and waits for running jobs. It is safe to call more
// than once.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, stopCh, c := s.cancel, s.stopCh, s.cron
	s.cancel, s.stopCh, s.cron = nil, nil, nil
	for _, e := range s.jobs {
		e.id = 0
	}
	s.mu.Unlock()

	if c == nil {
		return
	}
	if stopCh != nil {
		close(stopCh)
	}

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn("stop timeout waiting for running jobs")
	}
	if cancel != nil {
		cancel()
	}
	s.logger.Info("stopped")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
