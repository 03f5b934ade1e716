// Package cleaner executes remediation of scan items. Every item is
// re-validated immediately before it is touched, and each requested item
// ends as exactly one succeeded, failed or skipped outcome.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/trash"
)

const (
	// DefaultCleanTimeout bounds one Clean call. Items not reached before
	// it fires are reported as skipped.
	DefaultCleanTimeout = 5 * time.Minute

	retryInitial    = 100 * time.Millisecond
	retryMaxElapsed = 3 * time.Second
	retryAttempts   = 3
)

// Status is the terminal state of one requested item.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// ItemLookup resolves scan item ids. *scanner.Result satisfies it.
type ItemLookup interface {
	Find(id string) (scanner.Item, bool)
}

// Validator re-authorizes paths before deletion.
type Validator interface {
	ValidateEntry(path string, ctx security.Context) (string, error)
}

// Trash receives items that must stay recoverable.
type Trash interface {
	MoveToTrash(ctx context.Context, path string, opts trash.MoveOptions) (*trash.Item, error)
}

// ProgressSink receives cleanup progress.
type ProgressSink interface {
	UpdateCleanProgress(*progress.CleanProgress)
}

// Config wires an Executor. Validator is required; Trash is required for
// trash-backed requests.
type Config struct {
	Validator Validator
	Trash     Trash
	Progress  ProgressSink
	Logger    *zap.Logger
	Timeout   time.Duration
}

// Request selects items to clean. IDs and Paths are paired by index; when
// IDs is empty every path is cleaned as an unclassified item.
type Request struct {
	IDs           []string   `json:"ids"`
	Paths         []string   `json:"paths"`
	UseTrash      bool       `json:"use_trash"`
	RetentionDays int        `json:"retention_days"`
	DryRun        bool       `json:"dry_run"`
	Lookup        ItemLookup `json:"-"`
}

// Outcome is the result for one requested item.
type Outcome struct {
	ID      string `json:"id,omitempty"`
	Path    string `json:"path"`
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Size    int64  `json:"size"`
	TrashID string `json:"trash_id,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Result aggregates one Clean call.
type Result struct {
	Requested int              `json:"requested"`
	Cleaned   int              `json:"cleaned"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	TotalSize int64            `json:"total_size"`
	Outcomes  []Outcome        `json:"outcomes"`
	Errors    []*DeletionError `json:"-"`
	DryRun    bool             `json:"dry_run"`
	Elapsed   time.Duration    `json:"elapsed"`

	// Permissions is only set for dry runs.
	Permissions *PermissionReport `json:"permissions,omitempty"`
}

// Executor deletes or trashes selected items.
type Executor struct {
	validator   Validator
	trash       Trash
	progress    ProgressSink
	permissions *PermissionManager
	logger      *zap.Logger
	timeout     time.Duration

	remove func(string) error
}

// New creates an Executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Validator == nil {
		return nil, errors.New("cleaner: validator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCleanTimeout
	}
	return &Executor{
		validator:   cfg.Validator,
		trash:       cfg.Trash,
		progress:    cfg.Progress,
		permissions: NewPermissionManager(),
		logger:      cfg.Logger.Named("cleaner"),
		timeout:     cfg.Timeout,
		remove:      os.Remove,
	}, nil
}

// target is one paired request entry.
type target struct {
	id   string
	path string
	item scanner.Item
	ok   bool // item metadata known
	err  error
}

func (e *Executor) pair(req Request) []target {
	n := len(req.Paths)
	if len(req.IDs) > n {
		n = len(req.IDs)
	}
	out := make([]target, 0, n)
	for i := 0; i < n; i++ {
		var t target
		if i < len(req.Paths) {
			t.path = req.Paths[i]
		}
		if i < len(req.IDs) {
			t.id = req.IDs[i]
		}
		if t.id != "" && req.Lookup != nil {
			t.item, t.ok = req.Lookup.Find(t.id)
		}
		// Package items carry no path
		isPackage := t.ok && t.item.ItemType == scanner.TypePackage
		if len(req.IDs) > 0 && (t.id == "" || (t.path == "" && !isPackage)) {
			t.err = ErrUnpaired
		}
		out = append(out, t)
	}
	return out
}

// Clean processes every requested item. It never aborts the batch; the
// returned error is non-nil only for a malformed request.
func (e *Executor) Clean(ctx context.Context, req Request) (*Result, error) {
	if req.UseTrash && e.trash == nil && !req.DryRun {
		return nil, errors.New("cleaner: trash store not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	targets := e.pair(req)
	res := &Result{
		Requested: len(targets),
		Outcomes:  make([]Outcome, 0, len(targets)),
		Errors:    []*DeletionError{},
		DryRun:    req.DryRun,
	}

	e.report(progress.PhaseCleaning, "", res, start)
	for _, t := range targets {
		out := e.cleanOne(ctx, req, t)
		res.Outcomes = append(res.Outcomes, out.Outcome)
		switch out.Status {
		case StatusSucceeded:
			res.Cleaned++
			res.TotalSize += out.Size
		case StatusFailed:
			res.Failed++
		case StatusSkipped:
			res.Skipped++
		}
		if out.err != nil {
			res.Errors = append(res.Errors, out.err)
		}
		e.report(progress.PhaseCleaning, out.Path, res, start)
	}
	if req.DryRun {
		res.Permissions = e.preflight(res.Outcomes)
	}
	res.Elapsed = time.Since(start)
	e.report(progress.PhaseComplete, "", res, start)

	e.logger.Info("clean complete",
		zap.Int("requested", res.Requested),
		zap.Int("cleaned", res.Cleaned),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Int64("freed", res.TotalSize),
		zap.Bool("trash", req.UseTrash),
		zap.Bool("dry_run", req.DryRun))
	return res, nil
}

type outcome struct {
	Outcome
	err *DeletionError
}

func (e *Executor) cleanOne(ctx context.Context, req Request, t target) outcome {
	o := outcome{Outcome: Outcome{ID: t.id, Path: t.path, Size: t.item.Size}}

	fail := func(status Status, err error) outcome {
		de := CategorizeError(t.path, err)
		o.Status = status
		o.Reason = de.UserMessage()
		o.Size = 0
		o.err = de
		e.logger.Warn("item not cleaned",
			zap.String("path", t.path),
			zap.String("status", string(status)),
			zap.Error(err))
		return o
	}

	if err := ctx.Err(); err != nil {
		return fail(StatusSkipped, err)
	}
	if t.err != nil {
		return fail(StatusSkipped, t.err)
	}
	if t.ok && t.item.ItemType == scanner.TypePackage {
		return fail(StatusSkipped, fmt.Errorf("%s: %w", t.item.Name, ErrPackageRemoval))
	}

	// Re-validate right before the destructive step; never from cache
	canonical, err := e.validator.ValidateEntry(t.path, security.ContextDeletion)
	if err != nil {
		return fail(StatusFailed, err)
	}
	o.Path = canonical
	if t.ok && t.item.Path != "" && t.item.Path != canonical {
		return fail(StatusSkipped, fmt.Errorf("%s: %w (%s)", canonical, ErrPathMismatch, t.item.Path))
	}
	if err := IsSafeToDelete(canonical); err != nil {
		return fail(StatusFailed, err)
	}

	kind := ""
	if t.ok {
		kind = t.item.Kind
	}
	if !req.UseTrash && !risk.AlwaysSafe(kind) {
		return fail(StatusSkipped, ErrUnsafeDirectDelete)
	}

	if req.DryRun {
		if o.Size == 0 {
			if info, err := os.Lstat(canonical); err == nil && info.Mode().IsRegular() {
				o.Size = info.Size()
			}
		}
		o.Status = StatusSucceeded
		o.Reason = "dry run"
		return o
	}

	if req.UseTrash {
		item, err := e.trash.MoveToTrash(ctx, canonical, trash.MoveOptions{
			RetentionDays: trash.ClampRetention(req.RetentionDays),
			Metadata:      metadataFor(t),
		})
		if item == nil {
			return fail(StatusFailed, err)
		}
		if err != nil {
			// Over capacity after eviction: the move itself succeeded
			o.Warning = err.Error()
			e.logger.Warn("trash over capacity", zap.String("path", canonical), zap.Error(err))
		}
		o.Status = StatusSucceeded
		o.Size = item.Size
		o.TrashID = item.ID
		return o
	}

	if err := e.unlink(ctx, canonical); err != nil {
		return fail(StatusFailed, err)
	}
	o.Status = StatusSucceeded
	e.logger.Info("removed", zap.String("path", canonical), zap.String("kind", kind))
	return o
}

// unlink removes a single entry, retrying transient failures. Directories
// are only removed when empty.
func (e *Executor) unlink(ctx context.Context, path string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitial
	bo.MaxElapsedTime = retryMaxElapsed

	return backoff.Retry(func() error {
		err := e.remove(path)
		if err == nil {
			return nil
		}
		if de := CategorizeError(path, err); de.Retryable {
			e.logger.Debug("retrying removal", zap.String("path", path), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, retryAttempts), ctx))
}

func metadataFor(t target) trash.Metadata {
	if !t.ok {
		return trash.Metadata{Category: "unclassified", Reason: "User selected for cleanup"}
	}
	return trash.Metadata{
		Category:  t.item.Category,
		Kind:      t.item.Kind,
		RiskLevel: int(t.item.Risk),
		Reason:    t.item.Description,
	}
}

// preflight reports which of the items a dry run would clean the current
// user can actually remove.
func (e *Executor) preflight(outcomes []Outcome) *PermissionReport {
	var paths []string
	sizes := make(map[string]int64, len(outcomes))
	for _, o := range outcomes {
		if o.Status != StatusSucceeded || o.Path == "" {
			continue
		}
		paths = append(paths, o.Path)
		sizes[o.Path] = o.Size
	}
	return e.permissions.AnalyzePermissions(paths, func(p string) int64 { return sizes[p] })
}

func (e *Executor) report(phase progress.Phase, path string, res *Result, start time.Time) {
	if e.progress == nil {
		return
	}
	e.progress.UpdateCleanProgress(&progress.CleanProgress{
		Phase:       phase,
		CurrentPath: path,
		Done:        len(res.Outcomes),
		Total:       res.Requested,
		Failed:      res.Failed,
		FreedSize:   res.TotalSize,
		StartTime:   start,
	})
}
