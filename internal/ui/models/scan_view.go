package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	pbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/ui/components"
	"github.com/fenilsonani/reclaim/internal/ui/styles"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// ScanFunc runs a scan. The model cancels ctx when the user quits.
type ScanFunc func(ctx context.Context) (*scanner.Result, error)

// ScanProgressMsg carries one progress event into the model.
type ScanProgressMsg progress.Event

// ScanCompleteMsg is sent when the scan returns.
type ScanCompleteMsg struct {
	Result *scanner.Result
	Err    error
}

type eventsClosedMsg struct{}

// CategoryProgress tracks progress for each category
type CategoryProgress struct {
	Name    string
	Count   int
	Size    int64
	Running bool
	Done    bool
}

// ScanViewModel shows live scan progress and quits when the scan returns.
type ScanViewModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	scan   ScanFunc
	events <-chan progress.Event

	spinner   spinner.Model
	bar       pbar.Model
	statusBar *components.StatusBar

	order     []string
	progress  map[string]*CategoryProgress
	percent   int
	message   string
	startTime time.Time
	width     int

	scanning  bool
	cancelled bool
	result    *scanner.Result
	err       error
}

// NewScanViewModel creates a new scan view model. categories fixes the
// display order; events may be nil.
func NewScanViewModel(ctx context.Context, scan ScanFunc, events <-chan progress.Event, categories []string) *ScanViewModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	ctx, cancel := context.WithCancel(ctx)
	m := &ScanViewModel{
		ctx:       ctx,
		cancel:    cancel,
		scan:      scan,
		events:    events,
		spinner:   s,
		bar:       pbar.New(pbar.WithDefaultGradient(), pbar.WithWidth(40)),
		statusBar: components.NewStatusBar("Scanning", components.Shortcut{Key: "q", Desc: "cancel"}),
		progress:  make(map[string]*CategoryProgress),
		startTime: time.Now(),
		width:     80,
		scanning:  true,
	}
	for _, c := range categories {
		m.track(c)
	}
	return m
}

func (m *ScanViewModel) track(name string) *CategoryProgress {
	if p, ok := m.progress[name]; ok {
		return p
	}
	p := &CategoryProgress{Name: name}
	m.progress[name] = p
	m.order = append(m.order, name)
	return p
}

// Init initializes the scan view
func (m *ScanViewModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.performScan, m.waitForEvent)
}

// Update handles messages
func (m *ScanViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.scanning {
				return m, tea.Quit
			}
			m.cancelled = true
			m.message = "Cancelling..."
			m.cancel()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-10, 10), 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ScanProgressMsg:
		m.apply(progress.Event(msg))
		return m, m.waitForEvent

	case eventsClosedMsg:
		return m, nil

	case ScanCompleteMsg:
		m.scanning = false
		m.result = msg.Result
		m.err = msg.Err
		m.percent = 100
		m.cancel()
		return m, tea.Quit
	}

	return m, nil
}

func (m *ScanViewModel) apply(ev progress.Event) {
	if ev.Percent > m.percent {
		m.percent = ev.Percent
	}
	if ev.Message != "" && !m.cancelled {
		m.message = ev.Message
	}
	if ev.Category == "" {
		return
	}
	p := m.track(ev.Category)
	p.Count = ev.ItemsFound
	p.Size = ev.CurrentSize
	p.Done = p.Done || ev.Done
	p.Running = !p.Done
}

// View renders the scan view
func (m *ScanViewModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Scanning System"))
	b.WriteString("\n")

	if m.scanning {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.message)
		b.WriteString(" ")
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("(%s)", time.Since(m.startTime).Round(time.Second))))
		b.WriteString("\n\n")
	}
	b.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
	b.WriteString("\n\n")

	done := 0
	var totalSize int64
	for _, name := range m.order {
		p := m.progress[name]
		state := "pending"
		switch {
		case p.Done:
			state = "completed"
			done++
		case p.Running:
			state = "running"
		}
		if m.result != nil {
			if st, ok := m.result.Categories[name]; ok {
				state = string(st.State)
			}
		}
		b.WriteString(fmt.Sprintf("  %s %s %s, %s\n",
			styles.StateIcon(state),
			styles.CategoryStyle.Render(fmt.Sprintf("%-18s", name)),
			styles.BoldStyle.Render(fmt.Sprintf("%5d items", p.Count)),
			styles.FileSizeStyle.Render(utils.FormatBytes(p.Size)),
		))
		totalSize += p.Size
	}

	if !m.scanning {
		b.WriteString("\n")
		switch {
		case m.err != nil:
			b.WriteString(styles.ErrorStyle.Render("Scan stopped: " + m.err.Error()))
		case m.result != nil:
			b.WriteString(components.ScanSummaryPanel(m.result, m.width).Render())
		}
		b.WriteString("\n")
		return b.String()
	}

	m.statusBar.SetProgress(done, len(m.order), totalSize)
	b.WriteString("\n")
	b.WriteString(m.statusBar.Render(m.width))
	return b.String()
}

// Result returns the scan outcome once the model has finished.
func (m *ScanViewModel) Result() (*scanner.Result, error) {
	return m.result, m.err
}

// Cancelled reports whether the user stopped the scan.
func (m *ScanViewModel) Cancelled() bool {
	return m.cancelled
}

func (m *ScanViewModel) performScan() tea.Msg {
	res, err := m.scan(m.ctx)
	return ScanCompleteMsg{Result: res, Err: err}
}

func (m *ScanViewModel) waitForEvent() tea.Msg {
	if m.events == nil {
		return eventsClosedMsg{}
	}
	ev, ok := <-m.events
	if !ok {
		return eventsClosedMsg{}
	}
	return ScanProgressMsg(ev)
}
