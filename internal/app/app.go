// Package app wires the validator, classifier, scanner, trash, cleaner and
// growth analytics into one Engine handle shared by the CLI and daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/daemon"
	"github.com/fenilsonani/reclaim/internal/growth"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/storage"
	"github.com/fenilsonani/reclaim/internal/storage/memory"
	"github.com/fenilsonani/reclaim/internal/storage/sqlite"
	"github.com/fenilsonani/reclaim/internal/trash"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// Options configure New.
type Options struct {
	Config *config.Config
	// Ephemeral keeps the ledger and history in memory.
	Ephemeral bool
	// Info overrides platform detection.
	Info *platform.Info
	// StateDir overrides the directory holding sessions and the daemon lock.
	StateDir string
	// Runner overrides the package manager command runner.
	Runner   scanner.CommandRunner
	Capacity growth.CapacityFunc
	Logger   *zap.Logger
	Now      func() time.Time
}

// Engine owns every store for one process.
type Engine struct {
	Config     *config.Config
	Info       *platform.Info
	Store      storage.Store
	Validator  *security.PathValidator
	Classifier *risk.Classifier
	Progress   *progress.Reporter
	Scanner    *scanner.Engine
	Trash      *trash.Store
	Cleaner    *cleaner.Executor
	Growth     *growth.Analytics
	Sessions   *config.SessionManager
	Logger     *zap.Logger

	stateDir string
}

// New builds an Engine from a loaded configuration and sweeps the trash
// once. Close releases it.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.GetDefault()
	}
	if err := cfg.ResolvePaths(); err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	info := opts.Info
	if info == nil {
		var err error
		if info, err = platform.GetInfo(); err != nil {
			return nil, fmt.Errorf("failed to get platform info: %w", err)
		}
	}

	stateDir := opts.StateDir
	if stateDir == "" {
		var err error
		if stateDir, err = platform.AppStateDir(); err != nil {
			return nil, err
		}
	}

	var store storage.Store
	if opts.Ephemeral {
		store = memory.New()
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		s, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		store = s
	}

	e := &Engine{
		Config:   cfg,
		Info:     info,
		Store:    store,
		Progress: progress.NewReporter(),
		Logger:   logger,
		stateDir: stateDir,
	}
	if err := e.wire(opts); err != nil {
		_ = store.Close()
		return nil, err
	}
	e.sweepOnOpen(ctx, opts.Now)
	return e, nil
}

// sweepOnOpen expires and evicts trash so that retention holds without the
// daemon. A failure only warns.
func (e *Engine) sweepOnOpen(ctx context.Context, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	res, err := e.Trash.Sweep(ctx, now())
	if err != nil {
		e.Logger.Warn("startup trash sweep failed", zap.Error(err))
		return
	}
	for _, msg := range res.Errors {
		e.Logger.Warn("startup trash sweep", zap.String("error", msg))
	}
}

func (e *Engine) wire(opts Options) error {
	cfg := e.Config

	e.Validator = security.NewPathValidator(security.Policy{
		Home:      e.Info.HomeDir,
		TrashRoot: cfg.Trash.Dir,
		ScanRoots: cfg.Security.ScanRoots,
		Protected: cfg.Security.ProtectedPaths,
	})

	var deny []string
	if len(cfg.Security.DenyList) > 0 {
		deny = append(append(deny, risk.DefaultDenyList...), cfg.Security.DenyList...)
	}
	e.Classifier = risk.NewClassifier(e.Info.HomeDir, deny, nil)

	capacity := opts.Capacity
	if capacity == nil {
		capacity = growth.DiskCapacity(e.Info.HomeDir)
	}
	var err error
	e.Growth, err = growth.New(growth.Config{
		History:  e.Store,
		Capacity: capacity,
		Logger:   e.Logger,
		Now:      opts.Now,
	})
	if err != nil {
		return err
	}

	e.Scanner, err = scanner.NewEngine(scanner.Config{
		Info:       e.Info,
		Validator:  e.Validator,
		Classifier: e.Classifier,
		Runner:     opts.Runner,
		Progress:   e.Progress,
		Recorder:   e.Growth,
		Logger:     e.Logger,
		Now:        opts.Now,
	})
	if err != nil {
		return err
	}

	e.Trash, err = trash.New(trash.Config{
		Root:          cfg.Trash.Dir,
		RetentionDays: cfg.Trash.RetentionDays,
		MaxSize:       utils.MBToBytes(cfg.Trash.MaxSizeMB),
		Ledger:        e.Store,
		Validator:     e.Validator,
		Logger:        e.Logger,
		Now:           opts.Now,
	})
	if err != nil {
		return err
	}

	e.Cleaner, err = cleaner.New(cleaner.Config{
		Validator: e.Validator,
		Trash:     e.Trash,
		Progress:  e.Progress,
		Logger:    e.Logger,
	})
	if err != nil {
		return err
	}

	e.Sessions, err = config.NewSessionManagerAt(filepath.Join(e.stateDir, "sessions"))
	return err
}

// ScanOptions builds scan options from the configuration. A non-empty
// categories list overrides the enabled categories.
func (e *Engine) ScanOptions(categories []string) scanner.Options {
	sc := e.Config.Scan
	if len(categories) == 0 {
		categories = e.Config.Categories.Enabled()
	}
	day := 24 * time.Hour
	return scanner.Options{
		Categories:         categories,
		IncludeHidden:      sc.IncludeHidden,
		MaxDepth:           sc.MaxDepth,
		MaxFiles:           sc.MaxFiles,
		LargeFileThreshold: utils.MBToBytes(sc.LargeFileThresholdMB),
		OldDownloadAge:     time.Duration(sc.AgeThresholds.Downloads) * day,
		TempAge:            time.Duration(sc.AgeThresholds.Temp) * day,
		LogAge:             time.Duration(sc.AgeThresholds.Logs) * day,
		Concurrency:        sc.Concurrency,
		Exclude:            sc.ExcludePatterns,
	}
}

// Scan runs a scan and saves it as the latest session. A partial result
// from a cancelled scan is still saved.
func (e *Engine) Scan(ctx context.Context, opts scanner.Options) (*scanner.Result, *config.Session, error) {
	res, err := e.Scanner.Scan(ctx, opts)
	if res == nil {
		return nil, nil, err
	}
	sess, serr := e.Sessions.Save(res)
	if serr != nil {
		e.Logger.Warn("failed to save scan session", zap.Error(serr))
	}
	return res, sess, err
}

// Clean runs a remediation. Item ids resolve against the latest saved
// session when the request carries no lookup.
func (e *Engine) Clean(ctx context.Context, req cleaner.Request) (*cleaner.Result, error) {
	if req.Lookup == nil && len(req.IDs) > 0 {
		sess, err := e.Sessions.GetLatest()
		switch {
		case errors.Is(err, config.ErrNoSession):
		case err != nil:
			return nil, err
		default:
			req.Lookup = sess
		}
	}
	if req.RetentionDays == 0 {
		req.RetentionDays = e.Config.Trash.RetentionDays
	}
	return e.Cleaner.Clean(ctx, req)
}

// LockPath is the daemon's single-instance lock.
func (e *Engine) LockPath() string {
	return filepath.Join(e.stateDir, "daemon.lock")
}

// Daemon builds the maintenance daemon over this engine.
func (e *Engine) Daemon(notifier daemon.Notifier, logger *zap.Logger) (*daemon.Daemon, error) {
	if logger == nil {
		logger = e.Logger
	}
	return daemon.New(daemon.Config{
		Sweeper:     e.Trash,
		Scanner:     e.Scanner,
		Growth:      e.Growth,
		Sessions:    e.Sessions,
		ScanOptions: e.ScanOptions(nil),
		Monitoring:  e.Config.Monitoring,
		LockPath:    e.LockPath(),
		Notifier:    notifier,
		Logger:      logger,
	})
}

// Close releases the store and progress subscribers.
func (e *Engine) Close() error {
	e.Progress.Close()
	return e.Store.Close()
}
