package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sys/unix"

	"github.com/fenilsonani/reclaim/internal/cache"
)

// Context selects which sanctioned roots apply to a path.
type Context int

const (
	// ContextScan limits candidates to the user's home and configured scan roots.
	ContextScan Context = iota
	// ContextInspect is a broader read-only allow-list.
	ContextInspect
	// ContextDeletion applies before any destructive action.
	ContextDeletion
	ContextCacheCleanup
	ContextPackageManagement
	ContextLogCleanup
)

func (c Context) String() string {
	switch c {
	case ContextScan:
		return "scan"
	case ContextInspect:
		return "inspect"
	case ContextDeletion:
		return "deletion"
	case ContextCacheCleanup:
		return "cache-cleanup"
	case ContextPackageManagement:
		return "package-management"
	case ContextLogCleanup:
		return "log-cleanup"
	default:
		return fmt.Sprintf("context(%d)", int(c))
	}
}

// DefaultProtectedPaths are rejected in every context.
var DefaultProtectedPaths = []string{
	"/bin", "/boot", "/dev", "/etc", "/lib", "/lib64", "/proc", "/run", "/sbin", "/sys",
	"/usr/bin", "/usr/sbin", "/usr/lib", "/usr/local/bin",
	"/var/lib", "/var/run", "/var/lock", "/var/spool", "/root",
	// macOS system directories
	"/System", "/Library/System",
}

// deletionForbidden are additionally rejected for deletion unless the path
// lies in one of deletionExceptions.
var (
	deletionForbidden  = []string{"/usr", "/opt", "/var"}
	deletionExceptions = []string{"/var/cache", "/var/tmp"}
)

// Policy configures the sanctioned roots.
type Policy struct {
	Home       string
	TrashRoot  string
	ScanRoots  []string // extra roots allowed for scanning
	Protected  []string // extra always-forbidden prefixes
	SkipAccess bool     // skip the permission layer
}

// PathValidator canonicalizes paths and authorizes them for a Context.
// It holds no mutable state besides the validation cache and is safe for
// concurrent use.
type PathValidator struct {
	home           string
	protectedPaths []string
	roots          map[Context][]string
	skipAccess     bool

	cache *cache.TTL[cacheKey, cachedResult]
}

// NewPathValidator creates a validator for the given policy.
func NewPathValidator(p Policy) *PathValidator {
	home := canonicalRoot(p.Home)
	tmp := canonicalRoot(os.TempDir())

	var extra []string
	for _, r := range p.ScanRoots {
		if r = canonicalRoot(expandHome(r, home)); r != "" {
			extra = append(extra, r)
		}
	}

	trashRoot := canonicalRoot(expandHome(p.TrashRoot, home))

	roots := map[Context][]string{
		ContextScan:              compact(append([]string{home}, extra...)),
		ContextInspect:           compact(append([]string{home, tmp, "/tmp", "/var/cache", "/var/log", "/var/tmp"}, extra...)),
		ContextDeletion:          compact([]string{home, tmp, "/tmp", "/var/cache", "/var/tmp", trashRoot}),
		ContextCacheCleanup:      compact([]string{home, tmp, "/tmp", "/var/cache"}),
		ContextPackageManagement: compact([]string{home, "/var/cache"}),
		ContextLogCleanup:        compact([]string{home, "/var/log"}),
	}

	protected := append([]string{}, DefaultProtectedPaths...)
	for _, pp := range p.Protected {
		protected = append(protected, filepath.Clean(pp))
	}

	return &PathValidator{
		home:           home,
		protectedPaths: protected,
		roots:          roots,
		skipAccess:     p.SkipAccess,
		cache:          cache.New[cacheKey, cachedResult](validationCacheTTL, validationCacheSize),
	}
}

// Home returns the canonical home directory the validator was built with.
func (pv *PathValidator) Home() string {
	return pv.home
}

// Roots returns the sanctioned roots for ctx.
func (pv *PathValidator) Roots(ctx Context) []string {
	return append([]string(nil), pv.roots[ctx]...)
}

// Validate canonicalizes path and authorizes it for ctx. The returned path is
// absolute with all symlinks resolved. Validating the result again yields
// the same result absent filesystem changes.
func (pv *PathValidator) Validate(path string, ctx Context) (string, error) {
	return pv.validate(path, ctx, true)
}

// ValidateEntry is Validate for destructive operations on the directory
// entry itself: parent directories are resolved but a symlink leaf is kept,
// so removing the result never touches the link target.
func (pv *PathValidator) ValidateEntry(path string, ctx Context) (string, error) {
	return pv.validate(path, ctx, false)
}

func (pv *PathValidator) validate(path string, ctx Context, followLeaf bool) (string, error) {
	// Step 1: Reject malformed input
	if path == "" {
		return "", reject(path, ctx, KindInvalidPath, "empty path", nil)
	}
	for _, r := range path {
		if r == 0 || unicode.IsControl(r) {
			return "", reject(path, ctx, KindInvalidPath, "control character in path", nil)
		}
	}

	// Step 2: Reject traversal sequences before any resolution
	if hasTraversal(path) {
		return "", reject(path, ctx, KindTraversalDetected, "", nil)
	}

	// Step 3: Canonicalize
	expanded := expandHome(path, pv.home)
	if !filepath.IsAbs(expanded) {
		return "", reject(path, ctx, KindInvalidPath, "path must be absolute", nil)
	}
	canonical, exists, err := resolve(filepath.Clean(expanded), followLeaf)
	if err != nil {
		return "", reject(path, ctx, KindInvalidPath, "cannot resolve symlinks", err)
	}

	// Step 4: System-critical prefixes, regardless of context
	if err := pv.checkProtectedPaths(canonical, path, ctx); err != nil {
		return "", err
	}

	// Step 5: Destructive contexts forbid wider system trees
	if ctx == ContextDeletion {
		if under(canonical, deletionForbidden...) && !under(canonical, deletionExceptions...) && !under(canonical, pv.roots[ctx]...) {
			return "", reject(path, ctx, KindSystemPathProtected, canonical, nil)
		}
	}

	// Step 6: Boundary check after resolution, which also catches symlinks
	// that redirect outside the sanctioned roots
	roots := pv.roots[ctx]
	if !under(canonical, roots...) {
		return "", reject(path, ctx, KindOutsideSanctionedRoot, canonical, nil)
	}
	if ctx == ContextDeletion && isRoot(canonical, roots) {
		return "", reject(path, ctx, KindSystemPathProtected, "refusing to delete a sanctioned root", nil)
	}

	// Step 7: Existence
	if !exists {
		return "", reject(path, ctx, KindNotFound, canonical, fs.ErrNotExist)
	}

	// Step 8: Permission
	if !pv.skipAccess {
		if err := checkAccess(canonical, ctx); err != nil {
			return "", reject(path, ctx, KindPermissionDenied, canonical, err)
		}
	}

	return canonical, nil
}

// checkProtectedPaths rejects canonical paths equal to or below a protected
// prefix. A prefix that contains the home directory only protects paths
// outside home.
func (pv *PathValidator) checkProtectedPaths(canonical, original string, ctx Context) error {
	if canonical == "/" {
		return reject(original, ctx, KindSystemPathProtected, "/", nil)
	}
	for _, protected := range pv.protectedPaths {
		if !under(canonical, protected) {
			continue
		}
		if pv.home != "" && under(pv.home, protected) && under(canonical, pv.home) {
			continue
		}
		return reject(original, ctx, KindSystemPathProtected, protected, nil)
	}
	return nil
}

// ValidateGlobPattern validates that a glob pattern is safe
func ValidateGlobPattern(pattern string) error {
	if hasTraversal(pattern) {
		return fmt.Errorf("glob pattern contains directory traversal: %s", pattern)
	}
	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}
	return nil
}

// ValidatePackageName checks an identifier reported by a package manager
// before it is shown or passed back to that manager as an argument.
func ValidatePackageName(name string) error {
	if name == "" || len(name) > maxPackageNameLen {
		return reject(name, ContextPackageManagement, KindInvalidPath, "bad package name length", nil)
	}
	if name[0] == '-' || name[0] == '.' {
		return reject(name, ContextPackageManagement, KindInvalidPath, "package name must start with a letter or digit", nil)
	}
	if hasTraversal(name) {
		return reject(name, ContextPackageManagement, KindTraversalDetected, "", nil)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '.' || r == '_' || r == ':' || r == '@':
		default:
			return reject(name, ContextPackageManagement, KindInvalidPath, fmt.Sprintf("character %q not allowed in package name", r), nil)
		}
	}
	return nil
}

func hasTraversal(path string) bool {
	lower := strings.ToLower(path)
	if strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%2e.") || strings.Contains(lower, ".%2e") {
		return true
	}
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// resolve evaluates symlinks. A dangling or unfollowed symlink leaf is kept
// as is below its resolved parent. For a missing leaf it resolves the
// deepest existing ancestor and rejoins the remainder.
func resolve(path string, followLeaf bool) (string, bool, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if followLeaf {
			if resolved, err := filepath.EvalSymlinks(path); err == nil {
				return resolved, true, nil
			}
		}
		parent, err := filepath.EvalSymlinks(filepath.Dir(path))
		if err != nil {
			return "", false, err
		}
		return filepath.Join(parent, filepath.Base(path)), true, nil
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", false, err
	}

	dir, rest := filepath.Dir(path), filepath.Base(path)
	for {
		if r, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(r, rest), false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", false, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path, false, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

func checkAccess(path string, ctx Context) error {
	switch ctx {
	case ContextDeletion, ContextCacheCleanup, ContextLogCleanup, ContextPackageManagement:
		return unix.Access(filepath.Dir(path), unix.W_OK)
	default:
		if fi, err := os.Lstat(path); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
			return unix.Access(filepath.Dir(path), unix.R_OK)
		}
		return unix.Access(path, unix.R_OK)
	}
}

// under reports whether path equals or lies below any of roots, respecting
// path separators.
func under(path string, roots ...string) bool {
	for _, root := range roots {
		if root == "" {
			continue
		}
		if path == root || root == "/" || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func isRoot(path string, roots []string) bool {
	for _, r := range roots {
		if path == r {
			return true
		}
	}
	return false
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// canonicalRoot resolves a configured root as far as it exists.
func canonicalRoot(root string) string {
	if root == "" || !filepath.IsAbs(root) {
		return ""
	}
	r, _, err := resolve(filepath.Clean(root), true)
	if err != nil {
		return filepath.Clean(root)
	}
	return r
}

func compact(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

const (
	maxPackageNameLen   = 128
	validationCacheTTL  = 30 * time.Second
	validationCacheSize = 10000
)
