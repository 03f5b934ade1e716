// Package risk maps cleanup candidates to a 0-5 risk tier.
package risk

import (
	"path/filepath"
	"strings"
)

// Tier is a risk classification. Higher tiers need more confirmation.
type Tier int

const (
	Safe Tier = iota
	Low
	Moderate
	Elevated
	High
	Critical
)

func (t Tier) String() string {
	switch t {
	case Safe:
		return "safe"
	case Low:
		return "low"
	case Moderate:
		return "moderate"
	case Elevated:
		return "elevated"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Category names shared with the scanner.
const (
	CategoryCache            = "cache"
	CategoryLogs             = "logs"
	CategoryFilesystemHealth = "filesystem_health"
	CategoryPackages         = "packages"
	CategoryStorageRecovery  = "storage_recovery"
)

// Kinds that refine a category.
const (
	KindEmptyDirectory = "empty_directory"
	KindBrokenSymlink  = "broken_symlink"
	KindOrphanedTemp   = "orphaned_temp"
	KindDuplicate      = "duplicate"
	KindLargeFile      = "large_file"
	KindOldDownload    = "old_download"
	KindOrphanPackage  = "orphan_package"
	KindPackageCache   = "package_cache"
)

// Candidate is the classifier input.
type Candidate struct {
	Category   string
	Kind       string
	Path       string
	Size       int64
	Dependents int
}

var categoryBase = map[string]Tier{
	CategoryCache:            Safe,
	CategoryLogs:             Low,
	CategoryFilesystemHealth: Moderate,
	CategoryPackages:         Elevated,
	CategoryStorageRecovery:  Moderate,
}

var kindBase = map[string]Tier{
	KindDuplicate:     Moderate,
	KindOldDownload:   Moderate,
	KindLargeFile:     High,
	KindPackageCache:  Safe,
	KindOrphanPackage: Elevated,
}

// alwaysSafe kinds may be unlinked directly without passing through trash.
var alwaysSafe = map[string]bool{
	KindEmptyDirectory: true,
	KindBrokenSymlink:  true,
	KindOrphanedTemp:   true,
}

// DefaultSystemAdjacent raise the tier of anything below them.
var DefaultSystemAdjacent = []string{"/var", "/opt", "/srv", "/usr/local", "/snap"}

// DefaultDenyList patterns force Critical. Entries starting with "~/" are
// home-relative prefixes, entries containing glob metacharacters are
// matched against the base name, everything else is an absolute prefix.
var DefaultDenyList = []string{
	"~/.ssh",
	"~/.gnupg",
	"~/.password-store",
	"~/.local/share/keyrings",
	"~/.config/reclaim",
	"*.kdbx",
	"id_rsa*",
	"id_ed25519*",
	"*.pem",
}

// Classifier is a pure, deterministic tiering function.
type Classifier struct {
	home           string
	denyPrefixes   []string
	denyGlobs      []string
	systemAdjacent []string
}

// NewClassifier builds a classifier. denyList and systemAdjacent default to
// DefaultDenyList and DefaultSystemAdjacent when nil.
func NewClassifier(home string, denyList, systemAdjacent []string) *Classifier {
	if denyList == nil {
		denyList = DefaultDenyList
	}
	if systemAdjacent == nil {
		systemAdjacent = DefaultSystemAdjacent
	}

	c := &Classifier{home: filepath.Clean(home)}
	for _, d := range denyList {
		switch {
		case strings.HasPrefix(d, "~/"):
			c.denyPrefixes = append(c.denyPrefixes, filepath.Join(c.home, d[2:]))
		case strings.ContainsAny(d, "*?["):
			c.denyGlobs = append(c.denyGlobs, d)
		default:
			c.denyPrefixes = append(c.denyPrefixes, filepath.Clean(d))
		}
	}
	for _, s := range systemAdjacent {
		c.systemAdjacent = append(c.systemAdjacent, filepath.Clean(s))
	}
	return c
}

// Classify returns the tier for c. Every matching rule contributes and the
// highest result wins.
func (cl *Classifier) Classify(c Candidate) Tier {
	if cl.denied(c.Path) {
		return Critical
	}

	tier := categoryBase[c.Category]
	if kt, ok := kindBase[c.Kind]; ok && kt > tier {
		tier = kt
	}
	if alwaysSafe[c.Kind] {
		tier = Safe
	}

	if cl.systemAdjacentPath(c.Path) {
		tier++
	}

	switch {
	case c.Dependents > 5:
		tier += 2
	case c.Dependents > 0:
		tier++
	}

	if tier > High {
		tier = High
	}
	return tier
}

func (cl *Classifier) denied(path string) bool {
	if path == "" {
		return false
	}
	clean := filepath.Clean(path)
	for _, p := range cl.denyPrefixes {
		if clean == p || strings.HasPrefix(clean, p+string(filepath.Separator)) {
			return true
		}
	}
	base := filepath.Base(clean)
	for _, g := range cl.denyGlobs {
		if ok, _ := filepath.Match(g, base); ok {
			return true
		}
	}
	return false
}

// systemAdjacentPath is true for paths below a system-adjacent prefix or
// with fewer than three components outside home.
func (cl *Classifier) systemAdjacentPath(path string) bool {
	if path == "" {
		return false
	}
	clean := filepath.Clean(path)
	if cl.home != "" && (clean == cl.home || strings.HasPrefix(clean, cl.home+string(filepath.Separator))) {
		return false
	}
	for _, p := range cl.systemAdjacent {
		if clean == p || strings.HasPrefix(clean, p+string(filepath.Separator)) {
			return true
		}
	}
	return len(strings.Split(strings.Trim(clean, "/"), "/")) < 3
}

// AutoSelectable reports whether items of tier t may be preselected.
func AutoSelectable(t Tier) bool {
	return t <= Low
}

// AlwaysSafe reports whether kind may be unlinked directly.
func AlwaysSafe(kind string) bool {
	return alwaysSafe[kind]
}
