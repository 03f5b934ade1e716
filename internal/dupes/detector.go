// Package dupes finds duplicate files by content and applies size and age
// predicates to an already-walked file set.
package dupes

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/reclaim/internal/walker"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

const (
	// DefaultMinSize skips files too small to be worth deduplicating.
	DefaultMinSize = 1024
	// DefaultMaxFiles bounds how many candidates a single run considers.
	DefaultMaxFiles = 10000
)

// File describes one walked regular file.
type File struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Group is a set of files with identical content. Keep indexes the member
// that should be retained.
type Group struct {
	Hash  string `json:"hash"`
	Size  int64  `json:"size"`
	Files []File `json:"files"`
	Keep  int    `json:"keep"`
}

// Keeper returns the member that should be retained.
func (g Group) Keeper() File {
	return g.Files[g.Keep]
}

// Removable returns every member except the keeper.
func (g Group) Removable() []File {
	out := make([]File, 0, len(g.Files)-1)
	for i, f := range g.Files {
		if i != g.Keep {
			out = append(out, f)
		}
	}
	return out
}

// Wasted is the space freed by removing every duplicate but the keeper.
func (g Group) Wasted() int64 {
	return g.Size * int64(len(g.Files)-1)
}

// Options configure a Detector.
type Options struct {
	MinSize       int64
	MaxFiles      int
	MaxDepth      int
	IncludeHidden bool
	Workers       int
}

// Detector groups files by content in two phases: a cheap sampled hash
// over size buckets, then a full hash over surviving candidates only.
type Detector struct {
	opts   Options
	logger *zap.Logger

	partial func(string) (uint64, error)
	full    func(string) (string, error)
}

// NewDetector creates a Detector.
func NewDetector(opts Options, logger *zap.Logger) *Detector {
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultMinSize
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		opts:    opts,
		logger:  logger,
		partial: utils.HashFileSampled,
		full:    utils.HashFile,
	}
}

// Collect walks root and returns its regular files. Hitting the file limit
// is not an error; the files seen so far are returned.
func Collect(ctx context.Context, root string, opts walker.Options) ([]File, error) {
	var files []File
	err := walker.Walk(ctx, root, opts, func(e walker.Entry) error {
		if e.IsRegular() {
			files = append(files, File{Path: e.Path, Size: e.Info.Size(), ModTime: e.Info.ModTime()})
		}
		return nil
	})
	if errors.Is(err, walker.ErrLimitReached) {
		err = nil
	}
	return files, err
}

// FindDuplicates walks root and groups files of at least minSize bytes by
// content.
func (d *Detector) FindDuplicates(ctx context.Context, root string, minSize int64) ([]Group, error) {
	files, err := Collect(ctx, root, walker.Options{
		MaxDepth:      d.opts.MaxDepth,
		MaxFiles:      d.opts.MaxFiles,
		IncludeHidden: d.opts.IncludeHidden,
	})
	if err != nil {
		return nil, err
	}
	if minSize <= 0 {
		minSize = d.opts.MinSize
	}
	return d.group(ctx, files, minSize)
}

// Group finds duplicates within an already-walked file set.
func (d *Detector) Group(ctx context.Context, files []File) ([]Group, error) {
	return d.group(ctx, files, d.opts.MinSize)
}

func (d *Detector) group(ctx context.Context, files []File, minSize int64) ([]Group, error) {
	// Phase 0: bucket by size
	bySize := make(map[int64][]File)
	considered := 0
	for _, f := range files {
		if f.Size < minSize {
			continue
		}
		if considered >= d.opts.MaxFiles {
			break
		}
		considered++
		bySize[f.Size] = append(bySize[f.Size], f)
	}

	var candidates []File
	for _, bucket := range bySize {
		if len(bucket) > 1 {
			candidates = append(candidates, bucket...)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Phase 1: sampled hash within size buckets
	partial, err := hashAll(ctx, candidates, d.opts.Workers, d.partial)
	if err != nil {
		return nil, err
	}
	type partialKey struct {
		size int64
		hash uint64
	}
	byPartial := make(map[partialKey][]File)
	for i, f := range candidates {
		if partial[i].err != nil {
			d.logger.Debug("sampled hash failed", zap.String("path", f.Path), zap.Error(partial[i].err))
			continue
		}
		k := partialKey{f.Size, partial[i].value}
		byPartial[k] = append(byPartial[k], f)
	}

	var survivors []File
	for _, bucket := range byPartial {
		if len(bucket) > 1 {
			survivors = append(survivors, bucket...)
		}
	}
	if len(survivors) == 0 {
		return nil, nil
	}

	// Phase 2: full content hash confirms equality
	full, err := hashAll(ctx, survivors, d.opts.Workers, d.full)
	if err != nil {
		return nil, err
	}
	byFull := make(map[string][]File)
	for i, f := range survivors {
		if full[i].err != nil {
			d.logger.Debug("content hash failed", zap.String("path", f.Path), zap.Error(full[i].err))
			continue
		}
		byFull[full[i].value] = append(byFull[full[i].value], f)
	}

	groups := make([]Group, 0, len(byFull))
	for hash, members := range byFull {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, newGroup(hash, members))
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Wasted() != groups[j].Wasted() {
			return groups[i].Wasted() > groups[j].Wasted()
		}
		return groups[i].Hash < groups[j].Hash
	})
	return groups, nil
}

// newGroup orders members by path and keeps the earliest modified file,
// breaking ties on path.
func newGroup(hash string, members []File) Group {
	sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
	keep := 0
	for i, f := range members {
		if f.ModTime.Before(members[keep].ModTime) {
			keep = i
		}
	}
	return Group{Hash: hash, Size: members[0].Size, Files: members, Keep: keep}
}

type hashResult[T any] struct {
	value T
	err   error
}

// hashAll hashes files with bounded parallelism. Per-file failures are
// recorded in the result; only cancellation aborts.
func hashAll[T any](ctx context.Context, files []File, workers int, fn func(string) (T, error)) ([]hashResult[T], error) {
	out := make([]hashResult[T], len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range files {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := fn(files[i].Path)
			out[i] = hashResult[T]{value: v, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
