package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// LiveProgress prints scan progress. On a terminal it redraws one status
// line in place; otherwise it prints one line per category transition.
type LiveProgress struct {
	mu         sync.Mutex
	w          io.Writer
	tty        bool
	termWidth  int
	startTime  time.Time
	lastUpdate time.Time
	throttle   time.Duration
	frame      int
}

// NewLiveProgress creates a new live progress display
func NewLiveProgress(w io.Writer) *LiveProgress {
	lp := &LiveProgress{
		w:         w,
		termWidth: 80,
		startTime: time.Now(),
		throttle:  100 * time.Millisecond,
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		lp.tty = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			lp.termWidth = width
		}
	}
	return lp
}

// Update renders one progress event.
func (lp *LiveProgress) Update(ev progress.Event) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.tty {
		// Only the start and end of each category, plus the final event.
		if ev.Done || ev.Phase == progress.PhaseComplete || ev.ItemsFound == 0 && ev.CurrentSize == 0 {
			fmt.Fprintln(lp.w, progress.FormatEvent(ev))
		}
		return
	}

	// Throttle updates to avoid flickering (max 10 updates per second)
	now := time.Now()
	if !ev.Done && ev.Phase != progress.PhaseComplete && now.Sub(lp.lastUpdate) < lp.throttle {
		return
	}
	lp.lastUpdate = now
	lp.frame = (lp.frame + 1) % len(spinnerFrames)

	elapsed := time.Since(lp.startTime).Round(time.Second)
	line := fmt.Sprintf("%s %s | %s", spinnerFrames[lp.frame], progress.FormatEvent(ev), elapsed)
	fmt.Fprintf(lp.w, "\r\033[K%s", truncate(line, lp.termWidth-1))
	if ev.Done {
		fmt.Fprintf(lp.w, "\r\033[K%s\n", truncate(progress.FormatEvent(ev), lp.termWidth-1))
	}
}

// Finish completes the progress display
func (lp *LiveProgress) Finish() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.tty {
		fmt.Fprint(lp.w, "\r\033[K")
	}
}

// truncate truncates a string to fit width
func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

// PrintTree prints scan items grouped by category and parent directory.
// At most maxFiles entries are listed per directory.
func PrintTree(w io.Writer, items []scanner.Item, maxFiles int) {
	if maxFiles <= 0 {
		maxFiles = 5
	}

	byCategory := make(map[string][]scanner.Item)
	var order []string
	var total int64
	for _, it := range items {
		if _, ok := byCategory[it.Category]; !ok {
			order = append(order, it.Category)
		}
		byCategory[it.Category] = append(byCategory[it.Category], it)
		total += it.Size
	}

	for _, cat := range order {
		catItems := byCategory[cat]
		var catSize int64
		dirs := make(map[string][]scanner.Item)
		for _, it := range catItems {
			catSize += it.Size
			dirs[parentDir(it)] = append(dirs[parentDir(it)], it)
		}
		fmt.Fprintf(w, "\n╭─ %s (%s)\n", cat, utils.FormatBytes(catSize))

		dirNames := make([]string, 0, len(dirs))
		for d := range dirs {
			dirNames = append(dirNames, d)
		}
		sort.Strings(dirNames)

		for i, dir := range dirNames {
			last := i == len(dirNames)-1
			connector, indent := "├", "│   "
			if last {
				connector, indent = "╰", "    "
			}

			dirItems := dirs[dir]
			var dirSize int64
			for _, it := range dirItems {
				dirSize += it.Size
			}
			fmt.Fprintf(w, "%s── %s (%s)\n", connector, dir, utils.FormatBytes(dirSize))

			shown := min(len(dirItems), maxFiles)
			for j := 0; j < shown; j++ {
				branch := "├"
				if j == shown-1 && len(dirItems) <= maxFiles {
					branch = "╰"
				}
				fmt.Fprintf(w, "%s%s── %s (%s, %s)\n", indent, branch, leafName(dirItems[j]), utils.FormatBytes(dirItems[j].Size), dirItems[j].Risk)
			}
			if len(dirItems) > maxFiles {
				fmt.Fprintf(w, "%s╰── ... and %d more\n", indent, len(dirItems)-maxFiles)
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("═", 56))
	fmt.Fprintf(w, "Total: %d items | %s\n", len(items), utils.FormatBytes(total))
}

func parentDir(it scanner.Item) string {
	if it.Path == "" {
		return "(packages)"
	}
	return filepath.Dir(it.Path)
}

func leafName(it scanner.Item) string {
	if it.Path == "" {
		return it.Name
	}
	return filepath.Base(it.Path)
}
