// Package daemon runs periodic maintenance: trash sweeps at startup and
// hourly, growth-history pruning daily, and monitoring scans when enabled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/growth"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/trash"
)

// Job names.
const (
	JobSweep = "trash-sweep"
	JobPrune = "growth-prune"
	JobScan  = "monitor-scan"
)

// DefaultAlertDays raises a growth alert when a category is projected to
// fill the disk sooner than this.
const DefaultAlertDays = 14

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("daemon already running")

// Sweeper purges expired and over-capacity trash.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*trash.SweepResult, error)
}

// Scanner runs a full scan.
type Scanner interface {
	Scan(ctx context.Context, opts scanner.Options) (*scanner.Result, error)
}

// Growth prunes history and projects exhaustion.
type Growth interface {
	Prune(ctx context.Context, now time.Time) (int, error)
	ProjectAll(ctx context.Context) ([]growth.Projection, error)
}

// ResultSaver persists a scan so `clean --id` can resolve its items.
type ResultSaver interface {
	Save(res *scanner.Result) (*config.Session, error)
}

// Config wires a Daemon. Sweeper is required.
type Config struct {
	Sweeper     Sweeper
	Scanner     Scanner
	Growth      Growth
	Sessions    ResultSaver
	ScanOptions scanner.Options
	Monitoring  config.MonitoringConfig
	// LockPath guards against two daemons sharing one trash. A pid file is
	// written next to it.
	LockPath  string
	AlertDays float64
	Notifier  Notifier
	Logger    *zap.Logger
	Now       func() time.Time
}

// Daemon represents the maintenance daemon
type Daemon struct {
	cfg       Config
	logger    *zap.Logger
	notifier  Notifier
	now       func() time.Time
	scheduler *Scheduler
	lock      *flock.Flock

	running bool
	mu      sync.RWMutex
}

// New creates a new daemon instance
func New(cfg Config) (*Daemon, error) {
	if cfg.Sweeper == nil {
		return nil, errors.New("daemon: trash sweeper is required")
	}
	if cfg.Monitoring.Enabled && cfg.Scanner == nil {
		return nil, errors.New("daemon: monitoring requires a scanner")
	}
	if cfg.Monitoring.Enabled && cfg.Monitoring.IntervalHours <= 0 {
		return nil, fmt.Errorf("daemon: invalid monitoring interval %dh", cfg.Monitoring.IntervalHours)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewLogNotifier(cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AlertDays <= 0 {
		cfg.AlertDays = DefaultAlertDays
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   cfg.Logger.Named("daemon"),
		notifier: cfg.Notifier,
		now:      cfg.Now,
	}
	if cfg.LockPath != "" {
		d.lock = flock.New(cfg.LockPath)
	}
	return d, nil
}

// Jobs returns the jobs this daemon schedules.
func (d *Daemon) Jobs() []Job {
	jobs := []Job{
		{Name: JobSweep, Schedule: "@hourly", Run: d.RunSweep, SkipIfBusy: true},
	}
	if d.cfg.Growth != nil {
		jobs = append(jobs, Job{Name: JobPrune, Schedule: "@daily", Run: d.RunPrune, SkipIfBusy: true})
	}
	if d.cfg.Monitoring.Enabled {
		jobs = append(jobs, Job{
			Name:       JobScan,
			Schedule:   fmt.Sprintf("@every %dh", d.cfg.Monitoring.IntervalHours),
			Run:        d.RunScan,
			SkipIfBusy: true,
		})
	}
	return jobs
}

// Start runs the daemon until ctx is cancelled. It sweeps once before the
// scheduler starts.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	if err := d.acquireLock(); err != nil {
		return err
	}
	defer d.releaseLock()

	d.logger.Info("starting maintenance daemon",
		zap.Bool("monitoring", d.cfg.Monitoring.Enabled),
		zap.Int("interval_hours", d.cfg.Monitoring.IntervalHours))

	d.scheduler = NewScheduler(ctx, d.logger)
	for _, job := range d.Jobs() {
		if err := d.scheduler.AddJob(job); err != nil {
			return err
		}
	}

	if err := d.RunSweep(ctx); err != nil && ctx.Err() == nil {
		d.logger.Warn("startup sweep failed", zap.Error(err))
	}

	if err := d.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	d.notify(ctx, Notification{
		Title:     "Daemon started",
		Message:   "maintenance daemon started",
		Timestamp: d.now(),
		Type:      TypeStartup,
	})

	<-ctx.Done()

	d.logger.Info("daemon shutting down")
	d.scheduler.Stop(10 * time.Second)
	d.notify(context.Background(), Notification{
		Title:     "Daemon stopped",
		Message:   "maintenance daemon stopped",
		Timestamp: d.now(),
		Type:      TypeShutdown,
	})
	return nil
}

// Run starts the daemon and stops it on SIGINT or SIGTERM.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.Start(ctx)
}

// IsRunning returns whether the daemon is running
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Scheduler returns the active scheduler, or nil before Start.
func (d *Daemon) Scheduler() *Scheduler {
	return d.scheduler
}

// RunSweep purges expired and over-capacity trash.
func (d *Daemon) RunSweep(ctx context.Context) error {
	res, err := d.cfg.Sweeper.Sweep(ctx, d.now())
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if len(res.Expired)+len(res.Evicted)+res.Orphans > 0 {
		d.notify(ctx, sweepNotification(res, d.now()))
	}
	return nil
}

// RunPrune drops growth samples older than the projection window.
func (d *Daemon) RunPrune(ctx context.Context) error {
	if d.cfg.Growth == nil {
		return nil
	}
	n, err := d.cfg.Growth.Prune(ctx, d.now())
	if err != nil {
		return fmt.Errorf("prune growth history: %w", err)
	}
	d.logger.Debug("pruned growth history", zap.Int("samples", n))
	return nil
}

// RunScan performs a fresh scan, which records growth samples, and raises
// alerts for categories projected to fill the disk soon.
func (d *Daemon) RunScan(ctx context.Context) error {
	if d.cfg.Scanner == nil {
		return errors.New("no scanner configured")
	}
	opts := d.cfg.ScanOptions
	opts.NoCache = true

	res, err := d.cfg.Scanner.Scan(ctx, opts)
	if err != nil {
		return fmt.Errorf("monitoring scan: %w", err)
	}
	d.logger.Info("monitoring scan complete",
		zap.Int("items", len(res.Items)),
		zap.Int64("total_size", res.TotalSize),
		zap.Int("failed_categories", len(res.FailedCategories)))

	if d.cfg.Sessions != nil {
		if _, err := d.cfg.Sessions.Save(res); err != nil {
			d.logger.Warn("failed to save scan session", zap.Error(err))
		}
	}

	if d.cfg.Growth == nil {
		return nil
	}
	projections, err := d.cfg.Growth.ProjectAll(ctx)
	if err != nil {
		return fmt.Errorf("project growth: %w", err)
	}
	for _, p := range projections {
		if p.Growing() && p.DaysUntilExhaustion < d.cfg.AlertDays {
			d.notify(ctx, growthAlert(p, d.now()))
		}
	}
	return nil
}

func (d *Daemon) notify(ctx context.Context, n Notification) {
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.logger.Warn("notification failed", zap.String("type", n.Type), zap.Error(err))
	}
}

func (d *Daemon) acquireLock() error {
	if d.lock == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.cfg.LockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	pid := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(d.pidFile(), []byte(pid), 0o644); err != nil {
		d.logger.Warn("failed to write pid file", zap.Error(err))
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if d.lock == nil {
		return
	}
	_ = os.Remove(d.pidFile())
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release lock", zap.Error(err))
	}
}

func (d *Daemon) pidFile() string {
	return d.cfg.LockPath + ".pid"
}
