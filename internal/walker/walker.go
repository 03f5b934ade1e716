// Package walker provides the bounded, cancellable directory traversal used
// by every scan category.
package walker

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrLimitReached is returned when MaxFiles entries have been visited.
var ErrLimitReached = errors.New("walk file limit reached")

// Options bound a walk.
type Options struct {
	MaxDepth      int  // 0 means unlimited
	MaxFiles      int  // 0 means unlimited
	IncludeHidden bool // descend into and report dot entries
	Exclude       []string
}

// Entry is a visited filesystem entry. Info comes from Lstat, so symlinks
// are reported as symlinks and never followed.
type Entry struct {
	Path  string
	Depth int
	Info  fs.FileInfo
}

// IsDir reports whether the entry is a real directory.
func (e Entry) IsDir() bool { return e.Info.IsDir() }

// IsSymlink reports whether the entry is a symbolic link.
func (e Entry) IsSymlink() bool { return e.Info.Mode()&fs.ModeSymlink != 0 }

// IsRegular reports whether the entry is a regular file.
func (e Entry) IsRegular() bool { return e.Info.Mode().IsRegular() }

// Func is called for every entry below root. Returning filepath.SkipDir
// from a directory skips it; any other error stops the walk.
type Func func(Entry) error

// Walk visits root depth-first. Context cancellation is checked at every
// directory boundary, so cancellation latency is bounded by the work of a
// single directory. Unreadable entries are skipped. The root itself is not
// passed to fn.
func Walk(ctx context.Context, root string, opts Options, fn Func) error {
	info, err := os.Lstat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	visited := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if path == root {
			if err != nil {
				return err
			}
			return ctx.Err()
		}
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		name := d.Name()
		if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(path, name, opts.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		depth := strings.Count(strings.TrimPrefix(path, root), string(filepath.Separator))
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		visited++
		if opts.MaxFiles > 0 && visited > opts.MaxFiles {
			return ErrLimitReached
		}

		return fn(Entry{Path: path, Depth: depth, Info: fi})
	})
	return err
}

func excluded(path, name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
		if strings.HasPrefix(pattern, "/") && (path == pattern || strings.HasPrefix(path, pattern+"/")) {
			return true
		}
	}
	return false
}

// DirSize returns the total size of regular files below path. Symlinks are
// not followed. Unreadable entries are skipped.
func DirSize(ctx context.Context, path string) (int64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = Walk(ctx, path, Options{IncludeHidden: true}, func(e Entry) error {
		if e.IsRegular() {
			total += e.Info.Size()
		}
		return nil
	})
	return total, err
}

// IsEmptyDir reports whether dir has no entries.
func IsEmptyDir(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	return errors.Is(err, io.EOF)
}

// Age returns how long ago info was last modified. Future timestamps yield
// a negative duration.
func Age(info fs.FileInfo, now time.Time) time.Duration {
	return now.Sub(info.ModTime())
}
