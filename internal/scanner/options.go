package scanner

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/fenilsonani/reclaim/internal/risk"
)

const (
	DefaultMaxDepth           = 10
	DefaultMaxFiles           = 50000
	DefaultConcurrency        = 3
	DefaultLargeFileThreshold = 100 * 1024 * 1024
	DefaultOldDownloadAge     = 90 * 24 * time.Hour
	DefaultTempAge            = 30 * 24 * time.Hour
	DefaultTempDepth          = 3
	DefaultLogAge             = 7 * 24 * time.Hour

	BaseScanTimeout     = 10 * time.Minute
	ExtraScanTimeout    = 5 * time.Minute
	DefaultCategoryTime = 3 * time.Minute
	DefaultDirSizeTime  = 30 * time.Second
)

// Options select categories and bound a scan.
type Options struct {
	Categories         []string      `json:"categories"`
	IncludeHidden      bool          `json:"include_hidden"`
	MaxDepth           int           `json:"max_depth"`
	MaxFiles           int           `json:"max_files"`
	LargeFileThreshold int64         `json:"large_file_threshold"`
	OldDownloadAge     time.Duration `json:"old_download_age"`
	TempAge            time.Duration `json:"temp_age"`
	LogAge             time.Duration `json:"log_age"`
	Concurrency        int           `json:"concurrency"`
	// Exclude holds absolute prefixes and base-name globs never walked.
	Exclude []string `json:"exclude"`

	// Zero timeouts select the defaults; Timeout is derived from the
	// enabled categories.
	Timeout         time.Duration `json:"-"`
	CategoryTimeout time.Duration `json:"-"`
	DirSizeTimeout  time.Duration `json:"-"`

	// NoCache bypasses the result cache for this call.
	NoCache bool `json:"-"`
}

// withDefaults fills zero fields and canonicalizes the category list.
func (o Options) withDefaults(registered []string) Options {
	if len(o.Categories) == 0 {
		o.Categories = append([]string(nil), registered...)
	}
	seen := make(map[string]bool, len(o.Categories))
	cats := make([]string, 0, len(o.Categories))
	for _, c := range o.Categories {
		if !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	o.Categories = cats

	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	if o.LargeFileThreshold <= 0 {
		o.LargeFileThreshold = DefaultLargeFileThreshold
	}
	if o.OldDownloadAge <= 0 {
		o.OldDownloadAge = DefaultOldDownloadAge
	}
	if o.TempAge <= 0 {
		o.TempAge = DefaultTempAge
	}
	if o.LogAge <= 0 {
		o.LogAge = DefaultLogAge
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = OverallTimeout(o.Categories)
	}
	if o.CategoryTimeout <= 0 {
		o.CategoryTimeout = DefaultCategoryTime
	}
	if o.DirSizeTimeout <= 0 {
		o.DirSizeTimeout = DefaultDirSizeTime
	}
	return o
}

// Enabled reports whether category is selected.
func (o Options) Enabled(category string) bool {
	for _, c := range o.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// OverallTimeout derives the whole-scan timeout from the enabled
// categories. Package and cache analysis together get extra time.
func OverallTimeout(categories []string) time.Duration {
	var cache, packages bool
	for _, c := range categories {
		switch c {
		case risk.CategoryCache:
			cache = true
		case risk.CategoryPackages:
			packages = true
		}
	}
	if cache && packages {
		return BaseScanTimeout + ExtraScanTimeout
	}
	return BaseScanTimeout
}

// Fingerprint identifies the options that affect scan output. Options must
// already carry defaults.
func (o Options) Fingerprint() string {
	data, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
