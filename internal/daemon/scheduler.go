package daemon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of scheduled work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
	// SkipIfBusy drops a tick while the previous run is still going.
	SkipIfBusy bool
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run"`
	LastErr string    `json:"last_error,omitempty"`
}

// Scheduler runs jobs on cron schedules. Panics inside a job are recovered
// and logged; they never take the daemon down.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context

	jobsMu  sync.RWMutex
	jobs    map[string]cron.EntryID
	specs   map[string]Job
	lastErr map[string]error
	running bool
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler creates a scheduler whose jobs receive ctx.
func NewScheduler(ctx context.Context, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	cl := cronLogger{s: logger.Named("cron").Sugar()}

	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	return &Scheduler{
		cron:    c,
		logger:  logger,
		ctx:     ctx,
		jobs:    make(map[string]cron.EntryID),
		specs:   make(map[string]Job),
		lastErr: make(map[string]error),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop stops the scheduler and waits up to timeout for running jobs.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.jobsMu.Lock()
	if !s.running {
		s.jobsMu.Unlock()
		return
	}
	s.running = false
	s.jobsMu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
		s.logger.Warn("scheduler stop timed out", zap.Duration("timeout", timeout))
	}
	s.logger.Info("scheduler stopped")
}

// AddJob adds a new job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already exists", job.Name)
	}

	var cj cron.Job = cron.FuncJob(func() { s.execute(job) })
	if job.SkipIfBusy {
		cj = cron.NewChain(cron.SkipIfStillRunning(cronLogger{s: s.logger.Sugar()})).Then(cj)
	}

	id, err := s.cron.AddJob(job.Schedule, cj)
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", job.Name, err)
	}
	s.jobs[job.Name] = id
	s.specs[job.Name] = job

	s.logger.Info("added job",
		zap.String("job", job.Name),
		zap.String("schedule", job.Schedule),
		zap.Time("next_run", s.cron.Entry(id).Next))
	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(name string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	id, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.specs, name)
	delete(s.lastErr, name)

	s.logger.Info("removed job", zap.String("job", name))
	return nil
}

// GetNextRun returns the next run time for a job
func (s *Scheduler) GetNextRun(name string) (time.Time, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	id, exists := s.jobs[name]
	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", name)
	}
	return s.cron.Entry(id).Next, nil
}

// ListJobs returns information about all jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for name, id := range s.jobs {
		entry := s.cron.Entry(id)
		info := JobInfo{Name: name, NextRun: entry.Next, PrevRun: entry.Prev}
		if err := s.lastErr[name]; err != nil {
			info.LastErr = err.Error()
		}
		jobs = append(jobs, info)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// TriggerJob runs a job immediately on the calling goroutine.
func (s *Scheduler) TriggerJob(name string) error {
	s.jobsMu.RLock()
	job, exists := s.specs[name]
	s.jobsMu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.logger.Info("manually triggering job", zap.String("job", name))
	return s.execute(job)
}

func (s *Scheduler) execute(job Job) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := job.Run(s.ctx)

	s.jobsMu.Lock()
	s.lastErr[job.Name] = err
	s.jobsMu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}
	s.logger.Info("job finished",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
