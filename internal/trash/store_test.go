package trash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/storage"
	"github.com/fenilsonani/reclaim/internal/storage/memory"
	"github.com/fenilsonani/reclaim/internal/testutil"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	fx     *testutil.TestFixture
	store  *Store
	ledger *memory.Store
	clock  *clock
}

func newHarness(t *testing.T, maxSize int64) *harness {
	t.Helper()
	fx := testutil.NewFixture(t)
	trashRoot := filepath.Join(fx.Root, ".local", "share", "reclaim", "trash")
	require.NoError(t, os.MkdirAll(trashRoot, 0o700))

	ledger := memory.New()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	validator := security.NewPathValidator(security.Policy{Home: fx.Root, TrashRoot: trashRoot})

	st, err := New(Config{
		Root:      trashRoot,
		MaxSize:   maxSize,
		Ledger:    ledger,
		Validator: validator,
		Now:       clk.Now,
	})
	require.NoError(t, err)
	return &harness{fx: fx, store: st, ledger: ledger, clock: clk}
}

func TestMoveAndRestoreFile(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	content := []byte("cached build output\x00\x01\x02")
	path := h.fx.CreateFile("project/build.cache", content)

	item, err := h.store.MoveToTrash(ctx, path, MoveOptions{Metadata: Metadata{Category: "cache", Reason: "stale"}})
	require.NoError(t, err)

	h.fx.AssertFileNotExists(path)
	h.fx.AssertFileExists(item.TrashPath)
	assert.Equal(t, path, item.OriginalPath)
	assert.Equal(t, int64(len(content)), item.Size)
	assert.Equal(t, TypeFile, item.ItemType)
	assert.Equal(t, "cache", item.Metadata.Category)
	assert.Equal(t, filepath.Join(h.store.Root(), item.ID), item.TrashPath)

	restored, err := h.store.Restore(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, restored.ID)
	assert.Equal(t, content, h.fx.ReadFile(path))
	h.fx.AssertFileNotExists(item.TrashPath)

	items, err := h.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMoveAndRestoreDirectory(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.fx.CreateFile("cache/app/a.bin", make([]byte, 100))
	h.fx.CreateFile("cache/app/nested/b.bin", make([]byte, 50))
	h.fx.CreateSymlink(h.fx.Path("cache/app/a.bin"), "cache/app/link")
	dir := h.fx.Path("cache/app")

	item, err := h.store.MoveToTrash(ctx, dir, MoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, TypeDirectory, item.ItemType)
	assert.Equal(t, int64(150), item.Size)
	h.fx.AssertFileNotExists(dir)

	_, err = h.store.Restore(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, h.fx.ReadFile(filepath.Join(dir, "nested", "b.bin")), 50)
	target, err := os.Readlink(filepath.Join(dir, "link"))
	require.NoError(t, err)
	assert.Equal(t, h.fx.Path("cache/app/a.bin"), target)
}

func TestRestoreRecreatesParent(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	path := h.fx.CreateFile("gone/deep/file.txt", []byte("x"))

	item, err := h.store.MoveToTrash(ctx, path, MoveOptions{})
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(h.fx.Path("gone")))

	_, err = h.store.Restore(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), h.fx.ReadFile(path))
}

func TestRestoreConflict(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	path := h.fx.CreateFile("notes.txt", []byte("old"))

	item, err := h.store.MoveToTrash(ctx, path, MoveOptions{})
	require.NoError(t, err)
	h.fx.CreateFile("notes.txt", []byte("new"))

	_, err = h.store.Restore(ctx, item.ID)
	assert.ErrorIs(t, err, ErrRestoreConflict)
	assert.Equal(t, []byte("new"), h.fx.ReadFile(path))
	h.fx.AssertFileExists(item.TrashPath)
}

func TestUnknownID(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.store.Restore(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.store.DeleteForever(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryFollowsRetention(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	tests := []struct {
		retention int
		wantDays  int
	}{
		{0, DefaultRetentionDays},
		{3, 3},
		{100, MaxRetentionDays},
		{-4, MinRetentionDays},
	}
	for i, tt := range tests {
		path := h.fx.CreateFile(filepath.Join("exp", string(rune('a'+i))), []byte("data"))
		item, err := h.store.MoveToTrash(ctx, path, MoveOptions{RetentionDays: tt.retention})
		require.NoError(t, err)
		assert.Equal(t, item.DeletedAt.AddDate(0, 0, tt.wantDays), item.ExpiresAt, "retention %d", tt.retention)
		assert.Equal(t, h.clock.Now(), item.DeletedAt)
	}
}

func TestSweepPurgesExpiredAndIsIdempotent(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	oldPath := h.fx.CreateFile("old.log", make([]byte, 10))
	old, err := h.store.MoveToTrash(ctx, oldPath, MoveOptions{RetentionDays: 1})
	require.NoError(t, err)

	h.clock.Advance(12 * time.Hour)
	freshPath := h.fx.CreateFile("fresh.log", make([]byte, 20))
	fresh, err := h.store.MoveToTrash(ctx, freshPath, MoveOptions{RetentionDays: 7})
	require.NoError(t, err)

	now := h.clock.Now().Add(24 * time.Hour)
	res, err := h.store.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, res.Expired)
	assert.Equal(t, int64(10), res.Freed)
	h.fx.AssertFileNotExists(old.TrashPath)
	h.fx.AssertFileExists(fresh.TrashPath)

	again, err := h.store.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again.Expired)
	assert.Empty(t, again.Evicted)
	assert.Zero(t, again.Freed)

	items, err := h.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, fresh.ID, items[0].ID)
}

func TestEvictionIsOldestFirst(t *testing.T) {
	h := newHarness(t, 250)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		path := h.fx.CreateFile(name, make([]byte, 100))
		item, err := h.store.MoveToTrash(ctx, path, MoveOptions{})
		require.NoError(t, err)
		ids = append(ids, item.ID)
		h.clock.Advance(time.Minute)
	}

	items, err := h.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ids[1], items[0].ID)
	assert.Equal(t, ids[2], items[1].ID)

	st, err := h.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), st.TotalSize)
	assert.LessOrEqual(t, st.TotalSize, st.MaxSize)
}

func TestEvictionStopsAtFirstFailedPurge(t *testing.T) {
	h := newHarness(t, 250)
	ctx := context.Background()

	// A ledger row pointing outside the root can never be purged.
	stuck := h.fx.CreateFile("elsewhere/old.bin", make([]byte, 100))
	require.NoError(t, h.ledger.InsertTrashItem(ctx, &storage.TrashItem{
		ID:           "0-old",
		OriginalPath: h.fx.Path("old.bin"),
		TrashPath:    stuck,
		DeletedAt:    h.clock.Now().Add(-time.Hour),
		ExpiresAt:    h.clock.Now().Add(24 * time.Hour),
		Size:         100,
		ItemType:     TypeFile,
	}))

	a, err := h.store.MoveToTrash(ctx, h.fx.CreateFile("a.bin", make([]byte, 100)), MoveOptions{})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)

	b, err := h.store.MoveToTrash(ctx, h.fx.CreateFile("b.bin", make([]byte, 100)), MoveOptions{})
	assert.ErrorIs(t, err, ErrCapacity, "the store stays over its cap")
	require.NotNil(t, b)

	items, err := h.store.List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"0-old", a.ID, b.ID}, ids, "no item is evicted while an older one remains")
	h.fx.AssertFileExists(a.TrashPath)

	res, err := h.store.Sweep(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, res.Evicted)
	assert.True(t, res.OverCapacity)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "outside")
	h.fx.AssertFileExists(stuck)
}

func TestOversizedItemIsKeptWithWarning(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	path := h.fx.CreateFile("huge.iso", make([]byte, 100))

	item, err := h.store.MoveToTrash(ctx, path, MoveOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacity)
	require.NotNil(t, item)
	h.fx.AssertFileExists(item.TrashPath)

	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, int64(100), capErr.Total)
	assert.Equal(t, int64(50), capErr.Limit)
}

func TestCrossDeviceMoveFallsBackToCopy(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.store.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EXDEV}
	}

	h.fx.CreateFile("mnt/data/one.txt", []byte("one"))
	h.fx.CreateFile("mnt/data/sub/two.txt", []byte("two"))
	dir := h.fx.Path("mnt/data")

	item, err := h.store.MoveToTrash(ctx, dir, MoveOptions{})
	require.NoError(t, err)
	h.fx.AssertFileNotExists(dir)
	assert.Equal(t, []byte("two"), h.fx.ReadFile(filepath.Join(item.TrashPath, "sub", "two.txt")))

	_, err = h.store.Restore(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), h.fx.ReadFile(filepath.Join(dir, "one.txt")))
}

type failingLedger struct {
	*memory.Store
}

func (failingLedger) RunInTransaction(context.Context, func(storage.Transaction) error) error {
	return errors.New("disk full")
}

func TestLedgerFailureRollsBackMove(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.store.ledger = failingLedger{memory.New()}
	path := h.fx.CreateFile("keep.txt", []byte("keep"))

	item, err := h.store.MoveToTrash(ctx, path, MoveOptions{})
	require.Error(t, err)
	assert.Nil(t, item)
	assert.Equal(t, []byte("keep"), h.fx.ReadFile(path))

	entries, err := os.ReadDir(h.store.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, lockFileName, e.Name())
	}
}

func TestRejectsPathsOutsideRoots(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.store.MoveToTrash(ctx, "/etc/hostname", MoveOptions{})
	assert.ErrorIs(t, err, security.ErrSystemPathProtected)

	_, err = h.store.MoveToTrash(ctx, h.fx.Path("missing.txt"), MoveOptions{})
	assert.ErrorIs(t, err, security.ErrNotFound)
}

func TestRejectsPathsInsideTrash(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	path := h.fx.CreateFile("a.txt", []byte("a"))

	item, err := h.store.MoveToTrash(ctx, path, MoveOptions{})
	require.NoError(t, err)

	_, err = h.store.MoveToTrash(ctx, item.TrashPath, MoveOptions{})
	assert.ErrorIs(t, err, ErrInsideTrash)
}

func TestDeleteForeverAndEmpty(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	a, err := h.store.MoveToTrash(ctx, h.fx.CreateFile("a.txt", make([]byte, 5)), MoveOptions{})
	require.NoError(t, err)
	_, err = h.store.MoveToTrash(ctx, h.fx.CreateFile("b.txt", make([]byte, 7)), MoveOptions{})
	require.NoError(t, err)
	_, err = h.store.MoveToTrash(ctx, h.fx.CreateFile("c.txt", make([]byte, 9)), MoveOptions{})
	require.NoError(t, err)

	_, err = h.store.DeleteForever(ctx, a.ID)
	require.NoError(t, err)
	h.fx.AssertFileNotExists(a.TrashPath)

	count, freed, err := h.store.Empty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(16), freed)

	st, err := h.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Items)
}

func TestSweepReconcilesOrphans(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	stray := filepath.Join(h.store.Root(), "stray")
	require.NoError(t, os.MkdirAll(stray, 0o700))

	item, err := h.store.MoveToTrash(ctx, h.fx.CreateFile("x.txt", []byte("x")), MoveOptions{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(item.TrashPath))

	res, err := h.store.Sweep(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Orphans)
	h.fx.AssertFileNotExists(stray)

	items, err := h.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
