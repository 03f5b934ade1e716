// Package ui renders scan progress, either as a bubbletea view or as plain
// terminal lines.
package ui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/ui/models"
)

// RunScanTUI runs scan under a live progress view fed by reporter. Quitting
// the view cancels the scan; its partial result is still returned.
func RunScanTUI(ctx context.Context, reporter *progress.Reporter, categories []string, scan models.ScanFunc, opts ...tea.ProgramOption) (*scanner.Result, error) {
	events := reporter.Subscribe()
	defer reporter.Unsubscribe(events)

	m := models.NewScanViewModel(ctx, scan, events, categories)
	p := tea.NewProgram(m, opts...)

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running progress view: %w", err)
	}
	sm, ok := final.(*models.ScanViewModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model %T", final)
	}
	return sm.Result()
}

// RunScanPlain runs scan and prints progress events to w as lines.
func RunScanPlain(ctx context.Context, reporter *progress.Reporter, w io.Writer, scan models.ScanFunc) (*scanner.Result, error) {
	events := reporter.Subscribe()
	lp := NewLiveProgress(w)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			lp.Update(ev)
		}
	}()

	res, err := scan(ctx)
	reporter.Unsubscribe(events)
	<-done
	lp.Finish()
	return res, err
}
