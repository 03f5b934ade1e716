package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/reclaim/internal/app"
	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/scanner"
)

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "Proceed?"))
	assert.True(t, confirm(strings.NewReader("YES\n"), &out, "Proceed?"))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "Proceed?"))
	assert.False(t, confirm(strings.NewReader(""), &out, "Proceed?"))
	assert.Contains(t, out.String(), "Proceed? (y/N): ")
}

func testEngine(t *testing.T) *app.Engine {
	t.Helper()
	home := t.TempDir()
	cfg := config.GetDefault()
	cfg.Trash.Dir = home + "/trash"
	cfg.Database.Path = home + "/reclaim.db"
	cfg.Logging.File = home + "/daemon.log"

	info, err := platform.InfoFor(platform.Linux, home, "tester")
	require.NoError(t, err)
	e, err := app.New(context.Background(), app.Options{
		Config:    cfg,
		Ephemeral: true,
		Info:      info,
		StateDir:  home + "/state",
		Capacity:  func(context.Context) (uint64, error) { return 1 << 30, nil },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func resetCleanFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		cleanIDs, cleanPaths, cleanCategory = nil, nil, ""
		cleanPermanent, dryRun = false, false
		cleanRetention = 0
	})
}

func TestBuildCleanRequest(t *testing.T) {
	e := testEngine(t)
	resetCleanFlags(t)

	// No session yet.
	cleanIDs = []string{"a"}
	_, err := buildCleanRequest(e)
	assert.ErrorContains(t, err, "reclaim scan")

	_, err = e.Sessions.Save(&scanner.Result{Items: []scanner.Item{
		{ID: "a", Path: "/home/u/.cache/a", Category: risk.CategoryCache, Risk: risk.Safe},
		{ID: "b", Path: "/home/u/.cache/b", Category: risk.CategoryCache, Risk: risk.Safe},
		{ID: "c", Path: "/var/log/c.log", Category: risk.CategoryLogs, Risk: risk.Moderate},
		{ID: "p", Name: "libfoo1", Category: risk.CategoryPackages, Risk: risk.Moderate},
	}})
	require.NoError(t, err)

	t.Run("ids resolve paths from the session", func(t *testing.T) {
		cleanIDs, cleanPaths, cleanCategory = []string{"b", "a"}, nil, ""
		req, err := buildCleanRequest(e)
		require.NoError(t, err)
		assert.Equal(t, []string{"/home/u/.cache/b", "/home/u/.cache/a"}, req.Paths)
		assert.True(t, req.UseTrash)
		assert.NotNil(t, req.Lookup)
	})

	t.Run("unknown id", func(t *testing.T) {
		cleanIDs, cleanPaths, cleanCategory = []string{"zzz"}, nil, ""
		_, err := buildCleanRequest(e)
		assert.ErrorContains(t, err, "not in the latest session")
	})

	t.Run("explicit pairs skip the session", func(t *testing.T) {
		cleanIDs, cleanPaths, cleanCategory = []string{"a"}, []string{"/elsewhere"}, ""
		cleanPermanent = true
		req, err := buildCleanRequest(e)
		require.NoError(t, err)
		assert.Nil(t, req.Lookup)
		assert.False(t, req.UseTrash)
		assert.Equal(t, []string{"/elsewhere"}, req.Paths)
		cleanPermanent = false
	})

	t.Run("category picks safe items only", func(t *testing.T) {
		cleanIDs, cleanPaths, cleanCategory = nil, nil, risk.CategoryCache
		req, err := buildCleanRequest(e)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, req.IDs)

		cleanCategory = risk.CategoryLogs
		req, err = buildCleanRequest(e)
		require.NoError(t, err)
		assert.Empty(t, req.Paths)
	})

	t.Run("category excludes explicit selection", func(t *testing.T) {
		cleanIDs, cleanPaths, cleanCategory = []string{"a"}, nil, risk.CategoryCache
		_, err := buildCleanRequest(e)
		assert.ErrorContains(t, err, "cannot be combined")
	})
}
