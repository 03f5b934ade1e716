package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/ui/styles"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// InfoPanel is a bordered block of labelled values.
type InfoPanel struct {
	title   string
	content []InfoItem
	width   int
}

// InfoItem represents a single piece of information
type InfoItem struct {
	Label string
	Value string
	Icon  string
}

// NewInfoPanel creates a new info panel
func NewInfoPanel(title string, width int) *InfoPanel {
	return &InfoPanel{title: title, width: width}
}

// AddItem adds an information item to the panel
func (p *InfoPanel) AddItem(label, value, icon string) {
	p.content = append(p.content, InfoItem{Label: label, Value: value, Icon: icon})
}

// Len returns the number of items.
func (p *InfoPanel) Len() int {
	return len(p.content)
}

// Render renders the info panel. The panel is clamped to 40-80 columns.
func (p *InfoPanel) Render() string {
	if len(p.content) == 0 {
		return ""
	}
	panelWidth := min(max(p.width-4, 40), 80)

	labelWidth := 0
	for _, item := range p.content {
		labelWidth = max(labelWidth, lipgloss.Width(item.Label))
	}
	labelStyle := lipgloss.NewStyle().Foreground(styles.Secondary).Bold(true).Width(labelWidth)

	var content strings.Builder
	content.WriteString(styles.SelectedStyle.Underline(true).Render(p.title))
	for _, item := range p.content {
		content.WriteString("\n")
		if item.Icon != "" {
			content.WriteString(item.Icon + " ")
		}
		content.WriteString(labelStyle.Render(item.Label) + "  ")
		content.WriteString(lipgloss.NewStyle().Foreground(styles.Text).Render(item.Value))
	}

	return styles.PanelStyle.Width(panelWidth).Render(content.String())
}

// ScanSummaryPanel lists per-category totals of a finished scan.
func ScanSummaryPanel(res *scanner.Result, width int) *InfoPanel {
	p := NewInfoPanel("Scan Complete", width)
	if res == nil {
		return p
	}

	riskiest := make(map[string]risk.Tier)
	for _, it := range res.Items {
		if t, ok := riskiest[it.Category]; !ok || it.Risk > t {
			riskiest[it.Category] = it.Risk
		}
	}

	names := make([]string, 0, len(res.Categories))
	for name := range res.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := res.Categories[name]
		value := fmt.Sprintf("%d items, %s", st.Items, utils.FormatBytes(st.Size))
		if t, ok := riskiest[name]; ok {
			value += ", up to " + styles.RiskBadge(t)
		}
		if st.Error != "" {
			value = st.Error
		}
		p.AddItem(name, value, styles.StateIcon(string(st.State)))
	}
	p.AddItem("total", fmt.Sprintf("%d items, %s", res.TotalItems, utils.FormatBytes(res.TotalSize)), "")
	return p
}
