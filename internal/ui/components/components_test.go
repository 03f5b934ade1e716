package components

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/scanner"
)

func TestScanSummaryPanel(t *testing.T) {
	res := &scanner.Result{
		TotalItems: 3,
		TotalSize:  3072,
		Items: []scanner.Item{
			{Category: risk.CategoryLogs, Risk: risk.Low},
			{Category: risk.CategoryLogs, Risk: risk.Elevated},
			{Category: risk.CategoryCache, Risk: risk.Safe},
		},
		Categories: map[string]scanner.CategoryStatus{
			risk.CategoryLogs:     {State: scanner.StateCompleted, Items: 2, Size: 2048},
			risk.CategoryCache:    {State: scanner.StateCompleted, Items: 1, Size: 1024},
			risk.CategoryPackages: {State: scanner.StateFailed, Error: "apt-get not found"},
		},
	}

	p := ScanSummaryPanel(res, 100)
	assert.Equal(t, 4, p.Len(), "one row per category plus the total")

	out := p.Render()
	assert.Contains(t, out, "Scan Complete")
	assert.Contains(t, out, "2 items, 2.0 KiB, up to elevated")
	assert.Contains(t, out, "1 items, 1.0 KiB, up to safe")
	assert.Contains(t, out, "apt-get not found")
	assert.Contains(t, out, "3 items, 3.0 KiB")
}

func TestInfoPanelEmpty(t *testing.T) {
	assert.Empty(t, ScanSummaryPanel(nil, 80).Render())
}

func TestStatusBar(t *testing.T) {
	bar := NewStatusBar("Scanning", Shortcut{Key: "q", Desc: "stop"})
	bar.SetProgress(2, 5, 4096)

	out := bar.Render(100)
	assert.Contains(t, out, "Scanning")
	assert.Contains(t, out, "2/5 categories")
	assert.Contains(t, out, "4.0 KiB")
	assert.Contains(t, out, "stop")

	// Hints are dropped before the left side is truncated.
	narrow := bar.Render(20)
	assert.NotContains(t, narrow, "stop")
}
