package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/growth"
	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/trash"
)

func sampleResult() *scanner.Result {
	return &scanner.Result{
		Items: []scanner.Item{
			{ID: "a1", Path: "/home/u/.cache/pip", Category: risk.CategoryCache, Size: 2048, Risk: risk.Safe},
			{ID: "b2", Name: "libfoo1", Category: risk.CategoryPackages, Kind: risk.KindOrphanPackage, Size: 4096, Risk: risk.Moderate},
		},
		TotalItems: 2,
		TotalSize:  6144,
		Categories: map[string]scanner.CategoryStatus{
			risk.CategoryCache:    {State: scanner.StateCompleted, Items: 1, Size: 2048},
			risk.CategoryPackages: {State: scanner.StateCompleted, Items: 1, Size: 4096},
			risk.CategoryLogs:     {State: scanner.StateTimedOut, Error: "category timed out"},
		},
		FailedCategories: []scanner.FailedCategory{{Category: risk.CategoryLogs, Reason: "category timed out"}},
		ScanTime:         1500 * time.Millisecond,
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestScanTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatTable).Report(sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "/home/u/.cache/pip")
	assert.Contains(t, out, "libfoo1", "package items show their name")
	assert.Contains(t, out, risk.KindOrphanPackage)
	assert.Contains(t, out, "Total: 2 items, 6.0 KiB")
	assert.Contains(t, out, "Failed: logs (category timed out)")
}

func TestScanSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatSummary).Report(sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "Total Items: 2")
	assert.Contains(t, out, "Scan Time: 1.5s")
	cacheAt := strings.Index(out, "cache")
	logsAt := strings.Index(out, "logs")
	assert.Less(t, cacheAt, logsAt, "categories are sorted")
	assert.Contains(t, out, "timed_out")
	assert.NotContains(t, out, "(partial)")

	res := sampleResult()
	res.Categories[risk.CategoryLogs] = scanner.CategoryStatus{State: scanner.StateTimedOut, Items: 1, Size: 512, Partial: true}
	buf.Reset()
	require.NoError(t, New(&buf, FormatSummary).Report(res))
	assert.Contains(t, buf.String(), "1 items, 512 B (partial)")
}

func TestScanJSONAndYAMLShareFieldNames(t *testing.T) {
	var jsonBuf, yamlBuf bytes.Buffer
	require.NoError(t, New(&jsonBuf, FormatJSON).Report(sampleResult()))
	require.NoError(t, New(&yamlBuf, FormatYAML).Report(sampleResult()))

	var fromJSON, fromYAML map[string]interface{}
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))

	assert.Contains(t, fromYAML, "total_items")
	assert.Contains(t, fromYAML, "failed_categories")
	assert.Equal(t, len(fromJSON), len(fromYAML))
	assert.NotContains(t, yamlBuf.String(), "{", "yaml output uses block style")
}

func TestReportCleanDryRun(t *testing.T) {
	res := &cleaner.Result{
		Requested: 2,
		Cleaned:   1,
		Skipped:   1,
		TotalSize: 1024,
		DryRun:    true,
		Outcomes: []cleaner.Outcome{
			{Path: "/home/u/.cache/x", Status: cleaner.StatusSucceeded, Size: 1024},
			{Path: "/home/u/Documents/y", Status: cleaner.StatusSkipped, Reason: "unsafe"},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatTable).ReportClean(res))
	out := buf.String()
	assert.Contains(t, out, "Would clean 1 of 2 items (1.0 KiB), 0 failed, 1 skipped")
	assert.Contains(t, out, "unsafe")
	assert.NotContains(t, out, "Permissions:")

	res.Permissions = &cleaner.PermissionReport{
		Removable:       []string{"/home/u/.cache/x"},
		RequiresSudo:    []string{"/var/cache/z"},
		TotalRemovable:  1024,
		TotalRestricted: 2048,
	}
	buf.Reset()
	require.NoError(t, New(&buf, FormatSummary).ReportClean(res))
	assert.Contains(t, buf.String(), "Permissions: 1 removable (1.0 KiB), 1 need elevated rights (2.0 KiB), 0 inaccessible")

	buf.Reset()
	require.NoError(t, New(&buf, FormatJSON).ReportClean(res))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	perms, ok := decoded["permissions"].(map[string]any)
	require.True(t, ok, "dry-run JSON carries the permission report")
	assert.Equal(t, float64(2048), perms["total_restricted"])
}

func TestReportTrash(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	items := []trash.Item{{
		ID:           "0b4f6a1e-2f0e-4a38-9d57-0c7a3b1c9e11",
		OriginalPath: "/home/u/.cache/old",
		DeletedAt:    now.Add(-48 * time.Hour),
		ExpiresAt:    now.Add(5 * 24 * time.Hour),
		Size:         3 << 20,
	}}
	stats := trash.Stats{Items: 1, TotalSize: 3 << 20, MaxSize: 1000 << 20, NextExpiry: items[0].ExpiresAt}

	var buf bytes.Buffer
	r := New(&buf, FormatTable)
	r.now = func() time.Time { return now }
	require.NoError(t, r.ReportTrash(items, stats))
	out := buf.String()
	assert.Contains(t, out, items[0].ID)
	assert.Contains(t, out, "2 days ago")
	assert.Contains(t, out, "Trash: 1 items, 3.0 MiB of 1000 MiB")
}

func TestReportGrowth(t *testing.T) {
	projections := []growth.Projection{
		{Category: "cache", RatePerDay: 10 << 20, DaysUntilExhaustion: 10, Samples: 5, Latest: 1 << 30},
		{Category: "logs", RatePerDay: -1024, DaysUntilExhaustion: growth.Infinite, Samples: 3},
	}

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatTable).ReportGrowth(projections))
	out := buf.String()
	assert.Contains(t, out, "+10 MiB")
	assert.Contains(t, out, "10 days")
	assert.Contains(t, out, "never")

	buf.Reset()
	require.NoError(t, New(&buf, FormatJSON).ReportGrowth(projections))
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, float64(10), decoded[0]["days_until_exhaustion"])
	assert.Nil(t, decoded[1]["days_until_exhaustion"])

	buf.Reset()
	require.NoError(t, New(&buf, FormatJSON).ReportGrowth(nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestFormatDays(t *testing.T) {
	assert.Equal(t, "less than a day", FormatDays(growth.Projection{DaysUntilExhaustion: 0.4}))
	assert.Equal(t, "1,235 days", FormatDays(growth.Projection{DaysUntilExhaustion: 1234.6}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))
	got := truncate("/a/very/long/path/that/keeps/going", 12)
	assert.Len(t, got, 12)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "going"))
}
