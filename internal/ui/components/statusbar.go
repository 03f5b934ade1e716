package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/reclaim/internal/ui/styles"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// Shortcut is one key hint shown on the right of the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar represents a status bar component that displays at the bottom of views
type StatusBar struct {
	label     string
	done      int
	total     int
	size      int64
	shortcuts []Shortcut
}

// NewStatusBar creates a new status bar
func NewStatusBar(label string, shortcuts ...Shortcut) *StatusBar {
	return &StatusBar{label: label, shortcuts: shortcuts}
}

// SetLabel sets the text on the left of the bar.
func (s *StatusBar) SetLabel(label string) {
	s.label = label
}

// SetProgress sets the completed category count and bytes found so far.
func (s *StatusBar) SetProgress(done, total int, size int64) {
	s.done = done
	s.total = total
	s.size = size
}

// SetShortcuts replaces the key hints.
func (s *StatusBar) SetShortcuts(shortcuts ...Shortcut) {
	s.shortcuts = shortcuts
}

// Render renders the status bar with the given width
func (s *StatusBar) Render(width int) string {
	if width <= 0 {
		width = 80
	}

	var parts []string
	if s.label != "" {
		parts = append(parts, styles.BoldStyle.Render(s.label))
	}
	if s.total > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d categories", s.done, s.total))
	}
	if s.size > 0 {
		parts = append(parts, styles.FileSizeStyle.Render(utils.FormatBytes(s.size)))
	}
	leftSide := strings.Join(parts, " • ")

	hints := make([]string, 0, len(s.shortcuts))
	for _, sc := range s.shortcuts {
		hints = append(hints, fmt.Sprintf("%s:%s", styles.DimStyle.Render(sc.Key), styles.HelpStyle.Render(sc.Desc)))
	}
	rightSide := strings.Join(hints, " ")

	// -2 for padding
	spacing := width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if spacing < 1 {
		rightSide = ""
		spacing = 1
	}

	return styles.StatusBarStyle.Width(width).Render(leftSide + strings.Repeat(" ", spacing) + rightSide)
}
