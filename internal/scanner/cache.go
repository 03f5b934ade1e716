package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/security"
)

// cacheScanner reports each application cache as a directory item whose
// children are its top-level entries.
type cacheScanner struct{}

func (cacheScanner) Name() string                        { return risk.CategoryCache }
func (cacheScanner) ValidationContext() security.Context { return security.ContextCacheCleanup }

func (cacheScanner) Scan(ctx context.Context, env *Env) ([]Item, error) {
	var dirs []string
	for _, root := range env.Info.CacheDirs {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}
	for _, extra := range env.Info.CacheExtras {
		if fi, err := os.Lstat(extra.Path); err == nil && fi.IsDir() {
			dirs = append(dirs, extra.Path)
		}
	}

	var candidates []Item
	var total int64
	for i, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env.Report(i*100/len(dirs), "Scanning cache directories", len(candidates), total)

		item, err := cacheItem(ctx, env, dir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			env.Logger.Warn("cache directory skipped", zap.String("path", dir), zap.Error(err))
			continue
		}
		if item.Size == 0 {
			continue
		}
		candidates = append(candidates, item)
		total += item.Size
	}

	return emitAll(env, candidates), nil
}

// cacheItem sizes dir as the sum of its top-level entries. An entry whose
// size walk times out is left out and the item is marked partial.
func cacheItem(ctx context.Context, env *Env, dir string) (Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		Path:     dir,
		ItemType: TypeDirectory,
	}
	partial := 0
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}

		child := Item{Name: e.Name(), Path: path, ItemType: TypeFile, Size: info.Size(), ModTime: info.ModTime()}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			child.ItemType = TypeSymlink
			child.Size = 0
		case info.IsDir():
			child.ItemType = TypeDirectory
			size, err := env.Sizer.Size(ctx, path)
			if err != nil {
				if ctx.Err() != nil {
					return Item{}, ctx.Err()
				}
				partial++
				continue
			}
			child.Size = size
		}
		item.Children = append(item.Children, child)
		item.Size += child.Size
	}

	item.Description = fmt.Sprintf("Application cache with %d entries", len(item.Children))
	if partial > 0 {
		item.Description += fmt.Sprintf(" (%d not sized)", partial)
	}
	return item, nil
}
