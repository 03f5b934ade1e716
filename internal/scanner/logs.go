package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/walker"
)

// Common log file extensions
var logSuffixes = []string{".log", ".log.gz", ".log.bz2", ".log.xz", ".old"}

type logScanner struct{}

func (logScanner) Name() string                        { return risk.CategoryLogs }
func (logScanner) ValidationContext() security.Context { return security.ContextLogCleanup }

func (logScanner) Scan(ctx context.Context, env *Env) ([]Item, error) {
	var candidates []Item
	var total int64
	now := env.Now()

	for i, dir := range env.Info.LogDirs {
		env.Report(i*100/(len(env.Info.LogDirs)+1), "Scanning log directories", len(candidates), total)

		err := walker.Walk(ctx, dir, walker.Options{
			MaxDepth:      env.Options.MaxDepth,
			MaxFiles:      env.Options.MaxFiles,
			IncludeHidden: env.Options.IncludeHidden,
		}, func(e walker.Entry) error {
			if !e.IsRegular() || !isLogFile(e.Info.Name()) {
				return nil
			}
			if isActiveLog(e.Info.Name()) && walker.Age(e.Info, now) < env.Options.LogAge {
				return nil
			}
			candidates = append(candidates, Item{
				Path:        e.Path,
				ItemType:    TypeFile,
				Size:        e.Info.Size(),
				ModTime:     e.Info.ModTime(),
				Description: "Old log file",
			})
			total += e.Info.Size()
			return nil
		})
		if err != nil && !errors.Is(err, walker.ErrLimitReached) && !errors.Is(err, os.ErrNotExist) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			env.Logger.Debug("log directory skipped", zap.String("path", dir), zap.Error(err))
		}
	}

	for _, pattern := range env.Info.LogGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			it, ok, err := logGlobItem(ctx, env, m)
			if err != nil {
				return nil, err
			}
			if ok {
				candidates = append(candidates, it)
			}
		}
	}

	return emitAll(env, candidates), nil
}

func logGlobItem(ctx context.Context, env *Env, path string) (Item, bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Item{}, false, nil
	}
	switch {
	case fi.Mode().IsRegular():
		if fi.Size() == 0 {
			return Item{}, false, nil
		}
		return Item{Path: path, ItemType: TypeFile, Size: fi.Size(), ModTime: fi.ModTime(), Description: "Session log"}, true, nil
	case fi.IsDir():
		size, err := env.Sizer.Size(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return Item{}, false, ctx.Err()
			}
			return Item{}, false, nil
		}
		if size == 0 {
			return Item{}, false, nil
		}
		return Item{Path: path, ItemType: TypeDirectory, Size: size, ModTime: fi.ModTime(), Description: "Application log directory"}, true, nil
	}
	return Item{}, false, nil
}

// isLogFile matches plain, compressed and rotated logs such as app.log.1.
func isLogFile(name string) bool {
	for _, suffix := range logSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.Contains(name, ".log.")
}

// isActiveLog reports whether name may still be written to.
func isActiveLog(name string) bool {
	return strings.HasSuffix(name, ".log")
}
