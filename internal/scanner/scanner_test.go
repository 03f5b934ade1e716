package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/testutil"
)

// =============================================================================
// Helpers
// =============================================================================

func testInfo(root string) *platform.Info {
	return &platform.Info{
		OS:           platform.Linux,
		HomeDir:      root,
		CacheDirs:    []string{filepath.Join(root, ".cache")},
		LogDirs:      []string{filepath.Join(root, ".local", "state")},
		TempDirNames: []string{"tmp", ".tmp", "temp", "Temp", "TEMP"},
		DownloadsDir: filepath.Join(root, "Downloads"),
	}
}

type engineOpts struct {
	registry *Registry
	runner   CommandRunner
	sink     progress.Sink
	recorder GrowthRecorder
}

func newTestEngine(t *testing.T, f *testutil.TestFixture, o engineOpts) *Engine {
	t.Helper()

	if o.runner == nil {
		o.runner = fakeRunner{}
	}
	e, err := NewEngine(Config{
		Info:       testInfo(f.Root),
		Validator:  security.NewPathValidator(security.Policy{Home: f.Root}),
		Classifier: risk.NewClassifier(f.Root, nil, nil),
		Registry:   o.registry,
		Runner:     o.runner,
		Progress:   o.sink,
		Recorder:   o.recorder,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

// fakeScanner is a category whose behaviour is supplied by the test.
type fakeScanner struct {
	name string
	scan func(ctx context.Context, env *Env) ([]Item, error)
}

func (f fakeScanner) Name() string                        { return f.name }
func (f fakeScanner) ValidationContext() security.Context { return security.ContextScan }
func (f fakeScanner) Scan(ctx context.Context, env *Env) ([]Item, error) {
	return f.scan(ctx, env)
}

func emitting(name string, paths ...string) fakeScanner {
	return fakeScanner{name: name, scan: func(ctx context.Context, env *Env) ([]Item, error) {
		var items []Item
		for _, p := range paths {
			fi, err := os.Stat(p)
			if err != nil {
				return nil, err
			}
			if it, ok := env.Emit(Item{Path: p, ItemType: TypeFile, Size: fi.Size()}); ok {
				items = append(items, it)
			}
		}
		return items, nil
	}}
}

func blocking(name string) fakeScanner {
	return fakeScanner{name: name, scan: func(ctx context.Context, env *Env) ([]Item, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

// fakeRunner answers commands from a table; anything else is not installed.
type fakeRunner map[string]string

func (r fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	out, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrCommandNotFound)
	}
	return []byte(out), nil
}

type memRecorder struct {
	mu      sync.Mutex
	samples map[string]int64
}

func (m *memRecorder) Record(_ context.Context, category string, size int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.samples == nil {
		m.samples = make(map[string]int64)
	}
	m.samples[category] = size
	return nil
}

func kinds(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Kind)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Category scanners
// =============================================================================

func TestFilesystemHealthFindsThreeAnomalies(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDir("empty")
	f.CreateBrokenSymlink("dangling")
	f.CreateFileWithAge("session.tmp", []byte("stale"), 400*24*time.Hour)

	e := newTestEngine(t, f, engineOpts{})
	res, err := e.Scan(context.Background(), Options{Categories: []string{risk.CategoryFilesystemHealth}})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if res.TotalItems != 3 {
		for _, it := range res.Items {
			t.Logf("item: %s %s", it.Kind, it.Path)
		}
		t.Fatalf("TotalItems = %d, want 3", res.TotalItems)
	}

	want := []string{risk.KindBrokenSymlink, risk.KindEmptyDirectory, risk.KindOrphanedTemp}
	got := kinds(res.Items)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kinds = %v, want %v", got, want)
			break
		}
	}

	for _, it := range res.Items {
		if it.Risk != risk.Safe {
			t.Errorf("%s risk = %v, want safe", it.Kind, it.Risk)
		}
		if it.Category != risk.CategoryFilesystemHealth {
			t.Errorf("%s category = %q", it.Path, it.Category)
		}
		if it.Kind == risk.KindBrokenSymlink && !strings.HasPrefix(it.Description, "Broken symlink pointing to non-existent target: ") {
			t.Errorf("description = %q", it.Description)
		}
		if it.ID == "" {
			t.Error("item has no id")
		}
	}
}

func TestFilesystemHealthSkipsRecentTemp(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("fresh.tmp", []byte("new"))
	f.CreateFileWithAge("notes.txt", []byte("old but not temp"), 400*24*time.Hour)
	f.CreateFileWithAge("build/tmp/out.o", []byte("in a temp dir"), 60*24*time.Hour)

	e := newTestEngine(t, f, engineOpts{})
	res, err := e.Scan(context.Background(), Options{Categories: []string{risk.CategoryFilesystemHealth}})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if res.TotalItems != 1 {
		t.Fatalf("TotalItems = %d, want 1", res.TotalItems)
	}
	if got := res.Items[0].Path; got != f.Path("build/tmp/out.o") {
		t.Errorf("path = %s", got)
	}
}

func TestCacheCategoryReportsDirectoriesWithChildren(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateSizedFile(".cache/app/a.bin", 100)
	f.CreateSizedFile(".cache/app/b.bin", 200)
	f.CreateSizedFile(".cache/app/sub/c.bin", 50)
	f.CreateDir(".cache/empty")

	e := newTestEngine(t, f, engineOpts{})
	res, err := e.Scan(context.Background(), Options{Categories: []string{risk.CategoryCache}})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if res.TotalItems != 1 {
		t.Fatalf("TotalItems = %d, want 1", res.TotalItems)
	}
	item := res.Items[0]
	if item.Size != 350 {
		t.Errorf("Size = %d, want 350", item.Size)
	}
	if len(item.Children) != 3 {
		t.Errorf("children = %d, want 3", len(item.Children))
	}
	var sum int64
	for _, c := range item.Children {
		sum += c.Size
	}
	if sum != item.Size {
		t.Errorf("children sum = %d, item size = %d", sum, item.Size)
	}
	if item.Risk != risk.Safe {
		t.Errorf("Risk = %v, want safe", item.Risk)
	}
	if res.TotalSize != 350 {
		t.Errorf("TotalSize = %d, want 350", res.TotalSize)
	}
}

func TestLogsCategory(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFileWithAge(".local/state/app/app.log", []byte("old log"), 10*24*time.Hour)
	f.CreateFile(".local/state/app/app.log.1", []byte("rotated"))
	f.CreateFile(".local/state/app/current.log", []byte("active"))
	f.CreateFile(".local/state/app/readme.txt", []byte("not a log"))

	e := newTestEngine(t, f, engineOpts{})
	res, err := e.Scan(context.Background(), Options{Categories: []string{risk.CategoryLogs}})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	var names []string
	for _, it := range res.Items {
		names = append(names, it.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "app.log,app.log.1" {
		t.Errorf("names = %v, want [app.log app.log.1]", names)
	}
}

func TestPackagesCategoryParsesAptOutput(t *testing.T) {
	f := testutil.NewFixture(t)
	runner := fakeRunner{
		"apt-get --dry-run autoremove":               "Reading package lists...\nRemv libfoo1 [1.0-2]\nRemv bad;name [2]\n",
		"dpkg-query -W -f=${Installed-Size} libfoo1": "2048\n",
		"apt-cache rdepends --installed libfoo1":     "libfoo1\nReverse Depends:\n  app1\n |app2\n  app1\n",
	}

	e := newTestEngine(t, f, engineOpts{runner: runner})
	res, err := e.Scan(context.Background(), Options{Categories: []string{risk.CategoryPackages}})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if res.TotalItems != 1 {
		t.Fatalf("TotalItems = %d, want 1", res.TotalItems)
	}
	pkg := res.Items[0]
	if pkg.Name != "libfoo1" || pkg.ItemType != TypePackage || pkg.Kind != risk.KindOrphanPackage {
		t.Errorf("unexpected item %+v", pkg)
	}
	if pkg.Size != 2048*1024 {
		t.Errorf("Size = %d, want %d", pkg.Size, 2048*1024)
	}
	if strings.Join(pkg.Dependents, ",") != "app1,app2" {
		t.Errorf("Dependents = %v", pkg.Dependents)
	}
	if pkg.Risk != risk.High {
		t.Errorf("Risk = %v, want high", pkg.Risk)
	}
	if st := res.Categories[risk.CategoryPackages]; st.State != StateCompleted {
		t.Errorf("state = %s", st.State)
	}
}

func TestPackagesCategoryWithoutManagers(t *testing.T) {
	f := testutil.NewFixture(t)

	e := newTestEngine(t, f, engineOpts{})
	res, err := e.Scan(context.Background(), Options{Categories: []string{risk.CategoryPackages}})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.TotalItems != 0 || len(res.FailedCategories) != 0 {
		t.Errorf("got %d items, %d failures; want none", res.TotalItems, len(res.FailedCategories))
	}
}

func TestStorageRecoverySharesOneWalk(t *testing.T) {
	f := testutil.NewFixture(t)
	now := time.Now()

	dup := []byte(strings.Repeat("duplicate content ", 200))
	a := f.CreateFile("docs/a.txt", dup)
	b := f.CreateFile("docs/b.txt", dup)
	f.SetAge(a, 48*time.Hour, now)
	f.SetAge(b, 24*time.Hour, now)

	big := f.CreateSizedFile("media/big.iso", 8000)
	old := f.CreateFile("Downloads/setup.zip", []byte(strings.Repeat("z", 1500)))
	f.SetAge(old, 120*24*time.Hour, now)

	e := newTestEngine(t, f, engineOpts{})
	res, err := e.Scan(context.Background(), Options{
		Categories:         []string{risk.CategoryStorageRecovery},
		LargeFileThreshold: 5000,
	})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	byPath := make(map[string]Item)
	for _, it := range res.Items {
		byPath[it.Path] = it
	}
	tests := []struct {
		path string
		kind string
	}{
		{b, risk.KindDuplicate},
		{big, risk.KindLargeFile},
		{old, risk.KindOldDownload},
	}
	for _, tt := range tests {
		it, ok := byPath[tt.path]
		if !ok {
			t.Errorf("missing %s", tt.path)
			continue
		}
		if it.Kind != tt.kind {
			t.Errorf("%s kind = %s, want %s", tt.path, it.Kind, tt.kind)
		}
	}
	if _, ok := byPath[a]; ok {
		t.Error("keeper of the duplicate group was reported")
	}
	if len(res.Duplicates) != 1 {
		t.Errorf("Duplicates = %d, want 1", len(res.Duplicates))
	}
	if res.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", res.TotalItems)
	}
}

// =============================================================================
// Engine behaviour
// =============================================================================

func TestCategoryTimeoutIsIsolated(t *testing.T) {
	f := testutil.NewFixture(t)
	p := f.CreateSizedFile("kept.bin", 10)

	reg := NewRegistry(blocking("slow"), emitting("fast", p))
	e := newTestEngine(t, f, engineOpts{registry: reg})

	res, err := e.Scan(context.Background(), Options{CategoryTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := res.Categories["slow"].State; got != StateTimedOut {
		t.Errorf("slow state = %s, want timed_out", got)
	}
	if got := res.Categories["fast"].State; got != StateCompleted {
		t.Errorf("fast state = %s, want completed", got)
	}
	if len(res.FailedCategories) != 1 || res.FailedCategories[0].Category != "slow" {
		t.Errorf("FailedCategories = %+v", res.FailedCategories)
	}
	if res.TotalItems != 1 || res.Items[0].Path != p {
		t.Errorf("Items = %+v", res.Items)
	}
}

func TestTimedOutCategoryKeepsItemsFoundSoFar(t *testing.T) {
	f := testutil.NewFixture(t)
	early := f.CreateSizedFile("early.bin", 30)
	outside := "/etc/hostname"

	reg := NewRegistry(
		fakeScanner{name: "slow", scan: func(ctx context.Context, env *Env) ([]Item, error) {
			var items []Item
			for _, p := range []string{early, outside} {
				if it, ok := env.Emit(Item{Path: p, ItemType: TypeFile, Size: 30}); ok {
					items = append(items, it)
				}
			}
			<-ctx.Done()
			return items, ctx.Err()
		}},
		fakeScanner{name: "broken", scan: func(_ context.Context, env *Env) ([]Item, error) {
			it, _ := env.Emit(Item{Path: early, ItemType: TypeFile, Size: 30})
			return []Item{it}, errors.New("read error")
		}},
	)
	rec := &memRecorder{}
	e := newTestEngine(t, f, engineOpts{registry: reg, recorder: rec})

	res, err := e.Scan(context.Background(), Options{CategoryTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	slow := res.Categories["slow"]
	if slow.State != StateTimedOut || !slow.Partial || slow.Items != 1 || slow.Size != 30 {
		t.Errorf("slow status = %+v", slow)
	}
	if broken := res.Categories["broken"]; broken.State != StateFailed || broken.Items != 0 || broken.Partial {
		t.Errorf("broken status = %+v", broken)
	}
	if res.TotalItems != 1 || res.Items[0].Path != early || res.Items[0].Category != "slow" {
		t.Errorf("Items = %+v", res.Items)
	}
	if len(res.FailedCategories) != 2 {
		t.Errorf("FailedCategories = %+v", res.FailedCategories)
	}
	if _, ok := rec.samples["slow"]; ok {
		t.Error("a partial category must not record a growth sample")
	}
}

func TestFailingCategoriesDoNotAbortSiblings(t *testing.T) {
	f := testutil.NewFixture(t)
	p := f.CreateSizedFile("kept.bin", 10)

	reg := NewRegistry(
		fakeScanner{name: "broken", scan: func(context.Context, *Env) ([]Item, error) {
			return nil, errors.New("permission denied")
		}},
		fakeScanner{name: "panics", scan: func(context.Context, *Env) ([]Item, error) {
			panic("boom")
		}},
		emitting("fine", p),
	)
	e := newTestEngine(t, f, engineOpts{registry: reg})

	res, err := e.Scan(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	for _, name := range []string{"broken", "panics"} {
		if got := res.Categories[name].State; got != StateFailed {
			t.Errorf("%s state = %s, want failed", name, got)
		}
	}
	if len(res.FailedCategories) != 2 {
		t.Errorf("FailedCategories = %d, want 2", len(res.FailedCategories))
	}
	if res.TotalItems != 1 {
		t.Errorf("TotalItems = %d, want 1", res.TotalItems)
	}
}

func TestScanCancellationLeaksNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := testutil.NewFixture(t)
	reg := NewRegistry(blocking("a"), blocking("b"), blocking("c"), blocking("d"))
	e := newTestEngine(t, f, engineOpts{registry: reg})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res, err := e.Scan(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Scan() error = %v, want context.Canceled", err)
	}
	if res == nil {
		t.Fatal("expected partial result on cancellation")
	}
	for name, st := range res.Categories {
		if !st.State.Terminal() || st.State == StateCompleted {
			t.Errorf("%s state = %s", name, st.State)
		}
	}
}

func TestPathsAreNeverCountedTwice(t *testing.T) {
	f := testutil.NewFixture(t)
	dir := f.CreateDir("shared")
	inner := f.CreateSizedFile("shared/inner.bin", 40)
	other := f.CreateSizedFile("other.bin", 5)

	first := fakeScanner{name: "first", scan: func(_ context.Context, env *Env) ([]Item, error) {
		it, _ := env.Emit(Item{Path: dir, ItemType: TypeDirectory, Size: 40})
		return []Item{it}, nil
	}}
	reg := NewRegistry(first, emitting("second", inner, other))
	e := newTestEngine(t, f, engineOpts{registry: reg})

	res, err := e.Scan(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.TotalItems != 2 {
		t.Errorf("TotalItems = %d, want 2", res.TotalItems)
	}
	if res.TotalSize != 45 {
		t.Errorf("TotalSize = %d, want 45", res.TotalSize)
	}
	if got := res.Categories["second"].Items; got != 1 {
		t.Errorf("second items = %d, want 1", got)
	}
}

func TestResultCacheAndInvalidate(t *testing.T) {
	f := testutil.NewFixture(t)
	p := f.CreateSizedFile("a.bin", 10)

	calls := 0
	reg := NewRegistry(fakeScanner{name: "counted", scan: func(ctx context.Context, env *Env) ([]Item, error) {
		calls++
		it, _ := env.Emit(Item{Path: p, ItemType: TypeFile, Size: 10})
		return []Item{it}, nil
	}})
	e := newTestEngine(t, f, engineOpts{registry: reg})
	ctx := context.Background()

	first, err := e.Scan(ctx, Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	second, err := e.Scan(ctx, Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if calls != 1 || !second.Cached || first.Cached {
		t.Errorf("calls = %d, cached = %v/%v", calls, first.Cached, second.Cached)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Error("fingerprint changed between identical scans")
	}
	if second.Items[0].ID != first.Items[0].ID {
		t.Error("cached result should keep item ids")
	}

	if _, err := e.Scan(ctx, Options{NoCache: true}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	e.Invalidate()
	third, err := e.Scan(ctx, Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if calls != 3 || third.Cached {
		t.Errorf("calls = %d, cached = %v; want 3, false", calls, third.Cached)
	}
	if e.Stats().Results.Hits != 1 {
		t.Errorf("result cache hits = %d, want 1", e.Stats().Results.Hits)
	}
}

func TestCachedResultsAreIndependentCopies(t *testing.T) {
	f := testutil.NewFixture(t)
	p := f.CreateSizedFile("a.bin", 10)

	reg := NewRegistry(emitting("counted", p))
	e := newTestEngine(t, f, engineOpts{registry: reg})
	ctx := context.Background()

	first, err := e.Scan(ctx, Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	id := first.Items[0].ID
	first.Items[0].Path = "/changed"
	first.Categories["counted"] = CategoryStatus{State: StateFailed}

	second, err := e.Scan(ctx, Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !second.Cached {
		t.Fatal("second scan was not served from cache")
	}
	if second.Items[0].Path != p || second.Items[0].ID != id {
		t.Errorf("cached item = %+v", second.Items[0])
	}
	if second.Categories["counted"].State != StateCompleted {
		t.Errorf("cached status = %+v", second.Categories["counted"])
	}

	second.Items = append(second.Items[:0], Item{ID: "x"})
	delete(second.Categories, "counted")

	third, err := e.Scan(ctx, Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(third.Items) != 1 || third.Items[0].Path != p {
		t.Errorf("third items = %+v", third.Items)
	}
	if _, ok := third.Categories["counted"]; !ok {
		t.Error("cached categories were modified through a returned result")
	}
}

func TestProgressAndGrowthRecording(t *testing.T) {
	f := testutil.NewFixture(t)
	p := f.CreateSizedFile("a.bin", 64)

	reporter := progress.NewReporter()
	events := reporter.Subscribe()
	rec := &memRecorder{}
	reg := NewRegistry(emitting("one", p), blocking("never"))
	e := newTestEngine(t, f, engineOpts{registry: reg, sink: reporter, recorder: rec})

	res, err := e.Scan(context.Background(), Options{CategoryTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	reporter.Close()

	var last progress.Event
	seen := map[string]bool{}
	for ev := range events {
		seen[ev.Category] = true
		if ev.Percent < 0 || ev.Percent > 100 {
			t.Errorf("percent out of range: %d", ev.Percent)
		}
		last = ev
	}
	if last.Phase != progress.PhaseComplete || last.Percent != 100 {
		t.Errorf("last event = %+v, want complete at 100", last)
	}
	if last.ItemsFound != res.TotalItems {
		t.Errorf("last ItemsFound = %d, want %d", last.ItemsFound, res.TotalItems)
	}
	if !seen["one"] || !seen["never"] {
		t.Errorf("missing category events: %v", seen)
	}

	if got := rec.samples["one"]; got != 64 {
		t.Errorf("recorded %d for one, want 64", got)
	}
	if _, ok := rec.samples["never"]; ok {
		t.Error("timed-out category should not be recorded")
	}
}

func TestUnknownCategory(t *testing.T) {
	f := testutil.NewFixture(t)
	e := newTestEngine(t, f, engineOpts{})

	_, err := e.Scan(context.Background(), Options{Categories: []string{"docker"}})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("error = %v, want ErrUnknownCategory", err)
	}
}

// =============================================================================
// Options
// =============================================================================

func TestOverallTimeout(t *testing.T) {
	tests := []struct {
		categories []string
		want       time.Duration
	}{
		{[]string{risk.CategoryCache}, 10 * time.Minute},
		{[]string{risk.CategoryCache, risk.CategoryPackages}, 15 * time.Minute},
		{[]string{risk.CategoryLogs, risk.CategoryPackages}, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := OverallTimeout(tt.categories); got != tt.want {
			t.Errorf("OverallTimeout(%v) = %v, want %v", tt.categories, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	names := []string{"b", "a"}
	a := Options{Categories: []string{"a", "b"}}.withDefaults(names)
	b := Options{Categories: []string{"b", "a", "a"}}.withDefaults(names)
	c := Options{Categories: []string{"a"}}.withDefaults(names)

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("category order should not change the fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different categories should change the fingerprint")
	}
	if a.Timeout != BaseScanTimeout || a.MaxFiles != DefaultMaxFiles || a.MaxDepth != DefaultMaxDepth {
		t.Errorf("defaults not applied: %+v", a)
	}
}

func TestTempMatching(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.tmp", true},
		{"notes.swp", true},
		{"~lock.docx", true},
		{"draft.txt~", true},
		{"server.pid", true},
		{"main.go", false},
		{"tmpfile", false},
	}
	for _, tt := range tests {
		if got := matchesTempPattern(tt.name); got != tt.want {
			t.Errorf("matchesTempPattern(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	names := []string{"tmp", ".tmp"}
	if !inTempDir("/home/u/proj/tmp/x.o", "/home/u", names) {
		t.Error("expected file below tmp/ to match")
	}
	if inTempDir("/home/u/x.o", "/home/u", names) {
		t.Error("file at root should not match")
	}
}

// =============================================================================
// DirSizer
// =============================================================================

func TestDirSizerSharesAndCachesWalks(t *testing.T) {
	var mu sync.Mutex
	walks := 0
	release := make(chan struct{})

	d := NewDirSizer(time.Second)
	d.size = func(ctx context.Context, path string) (int64, error) {
		mu.Lock()
		walks++
		mu.Unlock()
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if n, err := d.Size(context.Background(), "/data"); err != nil || n != 42 {
				t.Errorf("Size() = %d, %v", n, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if walks != 1 {
		t.Errorf("walks = %d, want 1", walks)
	}
	if n, _ := d.Size(context.Background(), "/data"); n != 42 || walks != 1 {
		t.Errorf("cached Size() = %d after %d walks", n, walks)
	}
}

func TestDirSizerTimeoutIsNotCached(t *testing.T) {
	d := NewDirSizer(10 * time.Millisecond)
	d.size = func(ctx context.Context, path string) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	_, err := d.Size(context.Background(), "/slow")
	if !errors.Is(err, ErrDirSizeTimeout) {
		t.Fatalf("error = %v, want ErrDirSizeTimeout", err)
	}
	if d.Stats().Entries != 0 {
		t.Error("timed-out size was cached")
	}
}

// =============================================================================
// Result helpers
// =============================================================================

func TestGroupByCategory(t *testing.T) {
	res := &Result{
		Items: []Item{
			{ID: "1", Category: risk.CategoryCache, Size: 100},
			{ID: "2", Category: risk.CategoryCache, Size: 200},
			{ID: "3", Category: risk.CategoryLogs, Size: 50},
		},
		Categories: map[string]CategoryStatus{
			risk.CategoryCache: {State: StateCompleted, Size: 300},
			risk.CategoryLogs:  {State: StateTimedOut},
		},
	}

	groups := res.GroupByCategory()
	if len(groups) != 2 {
		t.Errorf("Expected 2 groups, got %d", len(groups))
	}
	if len(groups[risk.CategoryCache]) != 2 {
		t.Errorf("Expected 2 cache items, got %d", len(groups[risk.CategoryCache]))
	}

	if it, ok := res.Find("3"); !ok || it.Size != 50 {
		t.Errorf("Find(3) = %+v, %v", it, ok)
	}
	if _, ok := res.Find("missing"); ok {
		t.Error("Find(missing) should fail")
	}

	sizes := res.CategorySizes()
	if len(sizes) != 1 || sizes[risk.CategoryCache] != 300 {
		t.Errorf("CategorySizes() = %v", sizes)
	}
}
