// Package scanner discovers cleanup candidates. A static registry of
// category scanners runs under bounded concurrency with nested timeouts;
// a failed or timed-out category never aborts its siblings.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/reclaim/internal/cache"
	"github.com/fenilsonani/reclaim/internal/dupes"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/risk"
)

const (
	resultCacheTTL  = 10 * time.Minute
	resultCacheSize = 32
)

var (
	// ErrCategoryTimeout marks a category that exceeded its deadline.
	ErrCategoryTimeout = errors.New("category timed out")
	// ErrUnknownCategory is returned for categories missing from the registry.
	ErrUnknownCategory = errors.New("unknown category")
)

// GrowthRecorder receives per-category totals after every fresh scan.
type GrowthRecorder interface {
	Record(ctx context.Context, category string, size int64, ts time.Time) error
}

// Config wires an Engine. Info, Validator and Classifier are required.
type Config struct {
	Info       *platform.Info
	Validator  Validator
	Classifier *risk.Classifier
	Registry   *Registry
	Runner     CommandRunner
	Detector   DuplicateFinder
	Progress   progress.Sink
	Recorder   GrowthRecorder
	Logger     *zap.Logger
	Now        func() time.Time
}

// Engine runs scans. It owns the dir-size and result caches.
type Engine struct {
	info       *platform.Info
	validator  Validator
	classifier *risk.Classifier
	registry   *Registry
	runner     CommandRunner
	detector   DuplicateFinder
	progress   progress.Sink
	recorder   GrowthRecorder
	logger     *zap.Logger
	now        func() time.Time

	sizer   *DirSizer
	results *cache.TTL[string, *Result]
}

// EngineStats exposes cache counters.
type EngineStats struct {
	Results  cache.Stats `json:"results"`
	DirSizes cache.Stats `json:"dir_sizes"`
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Info == nil || cfg.Validator == nil || cfg.Classifier == nil {
		return nil, errors.New("scanner: platform info, validator and classifier are required")
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.Progress == nil {
		cfg.Progress = progress.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Detector == nil {
		cfg.Detector = dupes.NewDetector(dupes.Options{
			MinSize:  dupes.DefaultMinSize,
			MaxFiles: dupes.DefaultMaxFiles,
		}, cfg.Logger)
	}

	return &Engine{
		info:       cfg.Info,
		validator:  cfg.Validator,
		classifier: cfg.Classifier,
		registry:   cfg.Registry,
		runner:     cfg.Runner,
		detector:   cfg.Detector,
		progress:   cfg.Progress,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger.Named("scanner"),
		now:        cfg.Now,
		sizer:      NewDirSizer(DefaultDirSizeTime),
		results:    cache.New[string, *Result](resultCacheTTL, resultCacheSize),
	}, nil
}

// Categories lists registered categories in display order.
func (e *Engine) Categories() []string {
	return e.registry.Names()
}

// Invalidate drops cached results and directory sizes.
func (e *Engine) Invalidate() {
	e.results.Clear()
	e.sizer.Invalidate()
}

// Stats returns cache counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{Results: e.results.Stats(), DirSizes: e.sizer.Stats()}
}

// scanState tracks category progress for one scan.
type scanState struct {
	mu        sync.Mutex
	total     int
	completed int
	phase     map[string]int
	statuses  map[string]CategoryStatus
	items     map[string][]Item
	dupes     dupeSink
}

func (s *scanState) overall() int {
	sum := 0
	for _, p := range s.phase {
		sum += p
	}
	return progress.Overall(s.completed, sum, s.total)
}

// Scan runs the enabled categories and merges their results. It returns
// partial results together with ctx.Err() when ctx is cancelled; the
// overall timeout only marks the categories still running as timed out.
func (e *Engine) Scan(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults(e.registry.Names())
	for _, c := range opts.Categories {
		if _, ok := e.registry.Get(c); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
		}
	}

	fingerprint := opts.Fingerprint()
	if !opts.NoCache {
		if cached, ok := e.results.Get(fingerprint); ok {
			res := cached.clone()
			res.Cached = true
			e.publishComplete(res)
			return res, nil
		}
	}

	start := e.now()
	sctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	state := &scanState{
		phase:    make(map[string]int),
		statuses: make(map[string]CategoryStatus),
		items:    make(map[string][]Item),
	}
	var enabled []CategoryScanner
	for _, name := range e.registry.Names() {
		if opts.Enabled(name) {
			s, _ := e.registry.Get(name)
			enabled = append(enabled, s)
			state.statuses[name] = CategoryStatus{State: StatePending}
		}
	}
	state.total = len(enabled)

	e.logger.Info("scan started",
		zap.Strings("categories", opts.Categories),
		zap.Duration("timeout", opts.Timeout))

	g := new(errgroup.Group)
	g.SetLimit(opts.Concurrency)
	for _, s := range enabled {
		s := s
		g.Go(func() error {
			e.runCategory(sctx, s, opts, state)
			return nil
		})
	}
	_ = g.Wait()

	res := e.merge(state)
	res.Fingerprint = fingerprint
	res.Timestamp = start
	res.ScanTime = e.now().Sub(start)

	if err := ctx.Err(); err != nil {
		e.logger.Warn("scan cancelled", zap.Error(err))
		return res, err
	}

	if len(res.FailedCategories) == 0 {
		e.results.Set(fingerprint, res.clone())
	}
	e.record(ctx, res)
	e.publishComplete(res)

	e.logger.Info("scan complete",
		zap.Int("items", res.TotalItems),
		zap.Int64("size", res.TotalSize),
		zap.Int("failed_categories", len(res.FailedCategories)),
		zap.Duration("elapsed", res.ScanTime))
	return res, nil
}

func (e *Engine) runCategory(ctx context.Context, s CategoryScanner, opts Options, state *scanState) {
	name := s.Name()
	started := e.now()

	state.mu.Lock()
	state.statuses[name] = CategoryStatus{State: StateRunning}
	state.phase[name] = 0
	pct := state.overall()
	state.mu.Unlock()
	e.progress.Publish(progress.Event{
		Phase:    progress.PhaseScanning,
		Category: name,
		Percent:  pct,
		Message:  fmt.Sprintf("Scanning %s", name),
	})

	cctx, cancel := context.WithTimeout(ctx, opts.CategoryTimeout)
	defer cancel()

	env := &Env{
		Info:      e.info,
		Options:   opts,
		Sizer:     e.sizer,
		Runner:    e.runner,
		Logger:    e.logger.With(zap.String("category", name)),
		Now:       e.now,
		Detector:  e.detector,
		category:  name,
		vctx:      s.ValidationContext(),
		validator: e.validator,
		classify:  e.classifier,
		dupes:     &state.dupes,
	}
	env.report = func(percent int, message string, items int, size int64) {
		if percent > 99 {
			percent = 99
		}
		state.mu.Lock()
		state.phase[name] = percent
		overall := state.overall()
		state.mu.Unlock()
		e.progress.Publish(progress.Event{
			Phase:       progress.PhaseScanning,
			Category:    name,
			Percent:     overall,
			Message:     message,
			ItemsFound:  items,
			CurrentSize: size,
		})
	}

	items, err := safeScan(cctx, s, env)
	if err == nil && cctx.Err() != nil {
		err = cctx.Err()
	}

	status := CategoryStatus{State: StateCompleted, Duration: e.now().Sub(started)}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		status.State = StateTimedOut
		status.Error = fmt.Sprintf("%v after %s", ErrCategoryTimeout, status.Duration.Round(time.Millisecond))
	default:
		status.State = StateFailed
		status.Error = err.Error()
	}
	switch status.State {
	case StateFailed:
		items = nil
	case StateTimedOut:
		// Items found before the deadline went through Emit already.
		status.Partial = len(items) > 0
	}
	if status.State != StateCompleted {
		e.logger.Warn("category did not complete",
			zap.String("category", name),
			zap.String("state", string(status.State)),
			zap.String("reason", status.Error),
			zap.Int("partial_items", len(items)))
	}

	state.mu.Lock()
	state.items[name] = items
	state.statuses[name] = status
	delete(state.phase, name)
	state.completed++
	pct = state.overall()
	state.mu.Unlock()

	var size int64
	for _, it := range items {
		size += it.Size
	}
	e.progress.Publish(progress.Event{
		Phase:       progress.PhaseScanning,
		Category:    name,
		Percent:     pct,
		Message:     fmt.Sprintf("Finished %s (%s)", name, status.State),
		ItemsFound:  len(items),
		CurrentSize: size,
		Done:        true,
	})
}

// safeScan turns a panicking scanner into a failed category.
func safeScan(ctx context.Context, s CategoryScanner, env *Env) (items []Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s scanner: %v", s.Name(), r)
			items = nil
		}
	}()
	return s.Scan(ctx, env)
}

// merge combines category results in registry order. A path reported by
// an earlier category, or lying below one, is dropped from later ones so
// no byte is counted twice.
func (e *Engine) merge(state *scanState) *Result {
	state.mu.Lock()
	defer state.mu.Unlock()

	res := &Result{
		Items:            []Item{},
		FailedCategories: []FailedCategory{},
		Categories:       make(map[string]CategoryStatus, len(state.statuses)),
		Duplicates:       state.dupes.groups,
	}

	claimed := make(map[string]bool)
	for _, name := range e.registry.Names() {
		st, ok := state.statuses[name]
		if !ok {
			continue
		}
		if !st.State.Terminal() {
			st.State = StateTimedOut
			st.Error = ErrCategoryTimeout.Error()
		}

		items := state.items[name]
		sort.SliceStable(items, func(i, j int) bool { return items[i].Path < items[j].Path })
		st.Items, st.Size = 0, 0
		for _, it := range items {
			if it.Path != "" {
				if claimedBy(claimed, it.Path) {
					continue
				}
				claimed[it.Path] = true
			}
			res.Items = append(res.Items, it)
			st.Items++
			st.Size += it.Size
		}

		res.Categories[name] = st
		if st.State != StateCompleted {
			res.FailedCategories = append(res.FailedCategories, FailedCategory{Category: name, Reason: st.Error})
		}
	}

	sortItems(res.Items, e.registry.rank())
	res.TotalItems = len(res.Items)
	for _, it := range res.Items {
		res.TotalSize += it.Size
	}
	return res
}

func claimedBy(claimed map[string]bool, path string) bool {
	for p := path; ; {
		if claimed[p] {
			return true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

func (e *Engine) record(ctx context.Context, res *Result) {
	if e.recorder == nil {
		return
	}
	for category, size := range res.CategorySizes() {
		if err := e.recorder.Record(ctx, category, size, res.Timestamp); err != nil {
			e.logger.Warn("record growth sample", zap.String("category", category), zap.Error(err))
		}
	}
}

func (e *Engine) publishComplete(res *Result) {
	e.progress.Publish(progress.Event{
		Phase:       progress.PhaseComplete,
		Percent:     100,
		Message:     fmt.Sprintf("Scan complete: %d items", res.TotalItems),
		ItemsFound:  res.TotalItems,
		CurrentSize: res.TotalSize,
	})
}
