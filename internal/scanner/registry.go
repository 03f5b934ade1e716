package scanner

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/dupes"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/security"
)

// CategoryScanner is one scan strategy.
type CategoryScanner interface {
	Name() string
	// ValidationContext is the context every emitted path is validated in.
	ValidationContext() security.Context
	Scan(ctx context.Context, env *Env) ([]Item, error)
}

// Validator is the subset of the path validator used at scan time.
type Validator interface {
	ValidateCached(path string, ctx security.Context) (string, error)
}

// Registry is an ordered, static table of category scanners. Order is the
// display order and the priority when two categories report one path.
type Registry struct {
	scanners []CategoryScanner
	index    map[string]int
}

// NewRegistry builds a registry from scanners in priority order.
func NewRegistry(scanners ...CategoryScanner) *Registry {
	r := &Registry{index: make(map[string]int, len(scanners))}
	for _, s := range scanners {
		if _, dup := r.index[s.Name()]; dup {
			continue
		}
		r.index[s.Name()] = len(r.scanners)
		r.scanners = append(r.scanners, s)
	}
	return r
}

// DefaultRegistry returns the five built-in categories.
func DefaultRegistry() *Registry {
	return NewRegistry(
		cacheScanner{},
		&packageScanner{sources: DefaultSources()},
		logScanner{},
		healthScanner{},
		recoveryScanner{},
	)
}

// Names lists categories in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.scanners))
	for i, s := range r.scanners {
		out[i] = s.Name()
	}
	return out
}

// Get returns the scanner for name.
func (r *Registry) Get(name string) (CategoryScanner, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.scanners[i], true
}

func (r *Registry) rank() map[string]int {
	return r.index
}

// Env is what a category scanner may use.
type Env struct {
	Info      *platform.Info
	Options   Options
	Sizer     *DirSizer
	Runner    CommandRunner
	Logger    *zap.Logger
	Now       func() time.Time
	Detector  DuplicateFinder
	category  string
	vctx      security.Context
	validator Validator
	classify  *risk.Classifier
	report    func(percent int, message string, items int, size int64)
	dupes     *dupeSink
}

// Report publishes category-local progress.
func (e *Env) Report(percent int, message string, items int, size int64) {
	if e.report != nil {
		e.report(percent, message, items, size)
	}
}

// Emit validates and classifies a candidate. It returns false when the
// path is rejected; rejected candidates are dropped silently.
func (e *Env) Emit(it Item) (Item, bool) {
	if it.ItemType == TypePackage {
		if err := security.ValidatePackageName(it.Name); err != nil {
			e.Logger.Debug("rejected package", zap.String("name", it.Name), zap.Error(err))
			return Item{}, false
		}
	} else {
		canonical, err := e.validator.ValidateCached(it.Path, e.vctx)
		if err != nil {
			e.Logger.Debug("rejected candidate", zap.String("path", it.Path), zap.Error(err))
			return Item{}, false
		}
		if canonical != it.Path {
			for i := range it.Children {
				if rel, err := filepath.Rel(it.Path, it.Children[i].Path); err == nil {
					it.Children[i].Path = filepath.Join(canonical, rel)
				}
			}
		}
		it.Path = canonical
		if it.Name == "" {
			it.Name = filepath.Base(canonical)
		}
	}

	it.ID = uuid.NewString()
	it.Category = e.category
	it.DiscoveredAt = e.Now()
	it.Risk = e.classify.Classify(risk.Candidate{
		Category:   e.category,
		Kind:       it.Kind,
		Path:       it.Path,
		Size:       it.Size,
		Dependents: len(it.Dependents),
	})
	for i := range it.Children {
		it.Children[i].Category = e.category
		if it.Children[i].ID == "" {
			it.Children[i].ID = uuid.NewString()
		}
		if it.Children[i].DiscoveredAt.IsZero() {
			it.Children[i].DiscoveredAt = it.DiscoveredAt
		}
		it.Children[i].Risk = e.classify.Classify(risk.Candidate{
			Category: e.category,
			Kind:     it.Children[i].Kind,
			Path:     it.Children[i].Path,
			Size:     it.Children[i].Size,
		})
	}
	return it, true
}

func emitAll(env *Env, candidates []Item) []Item {
	out := make([]Item, 0, len(candidates))
	for _, c := range candidates {
		if it, ok := env.Emit(c); ok {
			out = append(out, it)
		}
	}
	return out
}

// DuplicateFinder groups an already-walked file set by content.
type DuplicateFinder interface {
	Group(ctx context.Context, files []dupes.File) ([]dupes.Group, error)
}

// RecordDuplicates attaches duplicate groups to the scan result.
func (e *Env) RecordDuplicates(groups []dupes.Group) {
	if e.dupes == nil {
		return
	}
	e.dupes.mu.Lock()
	e.dupes.groups = append(e.dupes.groups, groups...)
	e.dupes.mu.Unlock()
}

type dupeSink struct {
	mu     sync.Mutex
	groups []dupes.Group
}
