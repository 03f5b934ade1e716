package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/scanner"
)

func TestRunScanPlainPrintsCategoryTransitions(t *testing.T) {
	rep := progress.NewReporter()
	var buf bytes.Buffer

	res, err := RunScanPlain(context.Background(), rep, &buf, func(ctx context.Context) (*scanner.Result, error) {
		rep.Publish(progress.Event{Phase: progress.PhaseScanning, Category: "cache", Percent: 0, Message: "Scanning cache"})
		rep.Publish(progress.Event{Phase: progress.PhaseScanning, Category: "cache", Percent: 20, Message: "cache: 3 entries", ItemsFound: 3, CurrentSize: 10})
		rep.Publish(progress.Event{Phase: progress.PhaseScanning, Category: "cache", Percent: 50, Message: "Finished cache (completed)", ItemsFound: 3, CurrentSize: 10, Done: true})
		rep.Publish(progress.Event{Phase: progress.PhaseComplete, Percent: 100, Message: "Scan complete: 3 items", ItemsFound: 3})
		return &scanner.Result{TotalItems: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalItems)

	out := buf.String()
	assert.Contains(t, out, "Scanning cache")
	assert.Contains(t, out, "Finished cache (completed)")
	assert.Contains(t, out, "Scan complete: 3 items")
	assert.NotContains(t, out, "3 entries", "intermediate updates are not printed off-terminal")
}

func TestPrintTree(t *testing.T) {
	items := []scanner.Item{
		{Path: "/home/u/.cache/a/one", Category: risk.CategoryCache, Size: 1024, Risk: risk.Safe},
		{Path: "/home/u/.cache/a/two", Category: risk.CategoryCache, Size: 1024, Risk: risk.Safe},
		{Path: "/home/u/.cache/a/three", Category: risk.CategoryCache, Size: 1024, Risk: risk.Safe},
		{Name: "libfoo1", Category: risk.CategoryPackages, Size: 2048, Risk: risk.Moderate},
	}
	var buf bytes.Buffer
	PrintTree(&buf, items, 2)
	out := buf.String()

	assert.Contains(t, out, "╭─ cache (3.0 KiB)")
	assert.Contains(t, out, "/home/u/.cache/a (3.0 KiB)")
	assert.Contains(t, out, "... and 1 more")
	assert.Contains(t, out, "(packages)")
	assert.Contains(t, out, "libfoo1 (2.0 KiB, moderate)")
	assert.True(t, strings.HasSuffix(out, "Total: 4 items | 5.0 KiB\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
}
