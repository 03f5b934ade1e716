package dupes

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Analyzer applies size and age predicates to a walked file set so several
// storage checks share one traversal.
type Analyzer struct {
	files []File
}

// NewAnalyzer wraps an already-walked file set.
func NewAnalyzer(files []File) *Analyzer {
	return &Analyzer{files: files}
}

// Files returns the underlying file set.
func (a *Analyzer) Files() []File {
	return a.files
}

// LargeFiles returns files of at least threshold bytes, largest first.
func (a *Analyzer) LargeFiles(threshold int64) []File {
	return a.filter(func(f File) bool { return f.Size >= threshold })
}

// OldFiles returns files below root whose modification time is more than
// age before now, largest first. Files with future timestamps are skipped.
func (a *Analyzer) OldFiles(root string, age time.Duration, now time.Time) []File {
	root = filepath.Clean(root)
	return a.filter(func(f File) bool {
		if f.Path != root && !strings.HasPrefix(f.Path, root+string(filepath.Separator)) {
			return false
		}
		if f.ModTime.After(now) {
			return false
		}
		return now.Sub(f.ModTime) > age
	})
}

func (a *Analyzer) filter(keep func(File) bool) []File {
	var out []File
	for _, f := range a.files {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].Path < out[j].Path
	})
	return out
}
