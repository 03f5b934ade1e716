package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/walker"
)

// healthScanner finds filesystem anomalies under home in a single walk:
// empty directories, dangling symlinks and stale temp files.
type healthScanner struct{}

func (healthScanner) Name() string                        { return risk.CategoryFilesystemHealth }
func (healthScanner) ValidationContext() security.Context { return security.ContextScan }

func (healthScanner) Scan(ctx context.Context, env *Env) ([]Item, error) {
	root := env.Info.HomeDir
	now := env.Now()

	var candidates []Item
	var dirs []string
	env.Report(0, "Checking filesystem health", 0, 0)

	err := walker.Walk(ctx, root, walker.Options{
		MaxDepth:      env.Options.MaxDepth,
		MaxFiles:      env.Options.MaxFiles,
		IncludeHidden: env.Options.IncludeHidden,
		Exclude:       env.Options.Exclude,
	}, func(e walker.Entry) error {
		switch {
		case e.IsDir():
			dirs = append(dirs, e.Path)

		case e.IsSymlink():
			if _, err := os.Stat(e.Path); !errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			target, _ := os.Readlink(e.Path)
			candidates = append(candidates, Item{
				Path:        e.Path,
				Kind:        risk.KindBrokenSymlink,
				ItemType:    TypeSymlink,
				ModTime:     e.Info.ModTime(),
				Description: fmt.Sprintf("Broken symlink pointing to non-existent target: %s", target),
			})

		case e.IsRegular():
			if e.Depth > DefaultTempDepth || walker.Age(e.Info, now) <= env.Options.TempAge {
				return nil
			}
			if !matchesTempPattern(e.Info.Name()) && !inTempDir(e.Path, root, env.Info.TempDirNames) {
				return nil
			}
			candidates = append(candidates, Item{
				Path:        e.Path,
				Kind:        risk.KindOrphanedTemp,
				ItemType:    TypeFile,
				Size:        e.Info.Size(),
				ModTime:     e.Info.ModTime(),
				Description: fmt.Sprintf("Temporary file untouched for %d days", int(walker.Age(e.Info, now).Hours()/24)),
			})
		}
		return nil
	})
	if err != nil && !errors.Is(err, walker.ErrLimitReached) {
		return nil, err
	}

	env.Report(80, "Checking for empty directories", len(candidates), 0)
	// Emptiness is re-checked after the walk so a directory that gained
	// entries meanwhile is not reported.
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !walker.IsEmptyDir(dir) {
			continue
		}
		candidates = append(candidates, Item{
			Path:        dir,
			Kind:        risk.KindEmptyDirectory,
			ItemType:    TypeDirectory,
			Description: "Empty directory",
		})
	}

	return emitAll(env, candidates), nil
}
