package scanner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/security"
)

// ErrCommandNotFound is returned by a CommandRunner when the binary is not
// installed.
var ErrCommandNotFound = errors.New("command not found")

// CommandRunner runs package manager commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec under the C locale.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrCommandNotFound)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// PackageSource asks one package manager for removable data.
type PackageSource interface {
	Name() string
	Query(ctx context.Context, env *Env) ([]Item, error)
}

// DefaultSources returns the apt, pip and npm sources.
func DefaultSources() []PackageSource {
	return []PackageSource{aptSource{}, pipSource{}, npmSource{}}
}

// packageScanner reports orphaned packages and package download caches.
// A manager that is not installed contributes nothing.
type packageScanner struct {
	sources []PackageSource
}

func (*packageScanner) Name() string { return risk.CategoryPackages }

func (*packageScanner) ValidationContext() security.Context {
	return security.ContextPackageManagement
}

func (p *packageScanner) Scan(ctx context.Context, env *Env) ([]Item, error) {
	var candidates []Item
	seen := make(map[string]bool)

	for i, src := range p.sources {
		env.Report(i*100/(len(p.sources)+1), fmt.Sprintf("Querying %s", src.Name()), len(candidates), 0)
		items, err := src.Query(ctx, env)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, ErrCommandNotFound) {
				env.Logger.Warn("package query failed", zap.String("manager", src.Name()), zap.Error(err))
			}
			continue
		}
		for _, it := range items {
			if it.Path != "" {
				seen[filepath.Clean(it.Path)] = true
			}
			candidates = append(candidates, it)
		}
	}

	for _, pc := range env.Info.PackageCaches {
		if seen[filepath.Clean(pc.Path)] {
			continue
		}
		it, ok, err := packageCacheItem(ctx, env, pc.Name, pc.Path)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, it)
		}
	}

	return emitAll(env, candidates), nil
}

// packageCacheItem sizes a cache directory. Missing or empty directories
// are skipped; only cancellation is an error.
func packageCacheItem(ctx context.Context, env *Env, manager, path string) (Item, bool, error) {
	fi, err := os.Lstat(path)
	if err != nil || !fi.IsDir() {
		return Item{}, false, nil
	}
	size, err := env.Sizer.Size(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Item{}, false, ctx.Err()
		}
		env.Logger.Warn("package cache not sized", zap.String("path", path), zap.Error(err))
		return Item{}, false, nil
	}
	if size == 0 {
		return Item{}, false, nil
	}
	return Item{
		Path:        path,
		Kind:        risk.KindPackageCache,
		ItemType:    TypeDirectory,
		Size:        size,
		Description: fmt.Sprintf("%s download cache", manager),
	}, true, nil
}

type aptSource struct{}

func (aptSource) Name() string { return "apt" }

func (aptSource) Query(ctx context.Context, env *Env) ([]Item, error) {
	out, err := env.Runner.Run(ctx, "apt-get", "--dry-run", "autoremove")
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, name := range parseAutoremove(out) {
		if err := security.ValidatePackageName(name); err != nil {
			env.Logger.Debug("ignoring package", zap.String("name", name), zap.Error(err))
			continue
		}
		size := aptInstalledSize(ctx, env, name)
		dependents := aptReverseDepends(ctx, env, name)
		items = append(items, Item{
			Name:        name,
			Kind:        risk.KindOrphanPackage,
			ItemType:    TypePackage,
			Size:        size,
			Dependents:  dependents,
			Description: "Package installed as a dependency and no longer required",
		})
	}
	return items, ctx.Err()
}

// parseAutoremove extracts package names from "Remv <name> [version]" lines.
func parseAutoremove(out []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Remv ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			names = append(names, fields[1])
		}
	}
	return names
}

// aptInstalledSize returns the installed size in bytes; dpkg reports KiB.
func aptInstalledSize(ctx context.Context, env *Env, name string) int64 {
	out, err := env.Runner.Run(ctx, "dpkg-query", "-W", "-f=${Installed-Size}", name)
	if err != nil {
		return 0
	}
	kib, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil || kib < 0 {
		return 0
	}
	return kib * 1024
}

// aptReverseDepends lists installed packages that depend on name.
func aptReverseDepends(ctx context.Context, env *Env, name string) []string {
	out, err := env.Runner.Run(ctx, "apt-cache", "rdepends", "--installed", name)
	if err != nil {
		return nil
	}
	return parseReverseDepends(out, name)
}

func parseReverseDepends(out []byte, self string) []string {
	seen := make(map[string]bool)
	var deps []string
	inList := false
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Reverse Depends:") {
			inList = true
			continue
		}
		if !inList || line == "" {
			continue
		}
		dep := strings.TrimPrefix(line, "|")
		if dep == self || seen[dep] {
			continue
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

type pipSource struct{}

func (pipSource) Name() string { return "pip" }

func (pipSource) Query(ctx context.Context, env *Env) ([]Item, error) {
	out, err := env.Runner.Run(ctx, "pip3", "cache", "dir")
	if errors.Is(err, ErrCommandNotFound) {
		out, err = env.Runner.Run(ctx, "pip", "cache", "dir")
	}
	if err != nil {
		return nil, err
	}
	return reportedCache(ctx, env, "pip", out)
}

type npmSource struct{}

func (npmSource) Name() string { return "npm" }

func (npmSource) Query(ctx context.Context, env *Env) ([]Item, error) {
	out, err := env.Runner.Run(ctx, "npm", "config", "get", "cache")
	if err != nil {
		return nil, err
	}
	return reportedCache(ctx, env, "npm", out)
}

// reportedCache turns a directory printed by a package manager into an
// item. The output is untrusted and must be a single absolute path.
func reportedCache(ctx context.Context, env *Env, manager string, out []byte) ([]Item, error) {
	path := strings.TrimSpace(string(out))
	if path == "" || strings.ContainsAny(path, "\n\r") || !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%s reported an unusable cache path %q", manager, path)
	}
	it, ok, err := packageCacheItem(ctx, env, manager, path)
	if err != nil || !ok {
		return nil, err
	}
	return []Item{it}, nil
}
