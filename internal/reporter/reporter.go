// Package reporter renders scan, clean, trash and growth results as
// tables, summaries, JSON or YAML.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/growth"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/trash"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// DefaultWidth is used when the writer is not a terminal.
const DefaultWidth = 120

const minPathWidth = 20

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
	width  int
	now    func() time.Time
}

// New creates a new Reporter. Table width follows the terminal when writer
// is one.
func New(writer io.Writer, format OutputFormat) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
		width:  Width(writer),
		now:    time.Now,
	}
}

// Width returns the terminal width of w, or DefaultWidth.
func Width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

func (r *Reporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

func (r *Reporter) rule() {
	r.printf("%s\n", strings.Repeat("-", r.width))
}

// Report generates a report from scan results
func (r *Reporter) Report(result *scanner.Result) error {
	switch r.format {
	case FormatTable:
		return r.scanTable(result)
	case FormatJSON, FormatYAML:
		return r.encode(result)
	case FormatSummary:
		return r.scanSummary(result)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) scanSummary(result *scanner.Result) error {
	r.printf("=== Scan Summary ===\n")
	r.printf("Total Items: %d\n", result.TotalItems)
	r.printf("Total Size: %s\n", utils.FormatBytes(result.TotalSize))
	r.printf("Scan Time: %s", result.ScanTime.Round(time.Millisecond))
	if result.Cached {
		r.printf(" (cached)")
	}
	r.printf("\n\nBreakdown by Category:\n")

	names := make([]string, 0, len(result.Categories))
	for name := range result.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := result.Categories[name]
		suffix := ""
		if st.Partial {
			suffix = " (partial)"
		}
		r.printf("  %-18s %-10s %5d items, %s%s\n", name, st.State, st.Items, utils.FormatBytes(st.Size), suffix)
	}

	if len(result.Duplicates) > 0 {
		var wasted int64
		for _, g := range result.Duplicates {
			wasted += g.Wasted()
		}
		r.printf("\nDuplicate Groups: %d (%s reclaimable)\n", len(result.Duplicates), utils.FormatBytes(wasted))
	}
	if len(result.FailedCategories) > 0 {
		r.printf("\nFailed Categories:\n")
		for _, f := range result.FailedCategories {
			r.printf("  %s: %s\n", f.Category, f.Reason)
		}
	}
	return nil
}

func (r *Reporter) scanTable(result *scanner.Result) error {
	const fixed = 36 + 10 + 11 + 18 + 4*3
	pathWidth := max(r.width-fixed, minPathWidth)

	r.printf("%-36s | %-10s | %-11s | %-18s | %s\n", "ID", "Risk", "Size", "Category", "Path")
	r.rule()
	for _, item := range result.Items {
		path := item.Path
		if path == "" {
			path = item.Name
		}
		r.printf("%-36s | %-10s | %-11s | %-18s | %s\n",
			item.ID,
			item.Risk,
			utils.FormatBytes(item.Size),
			category(item),
			truncate(path, pathWidth))
	}
	r.rule()
	r.printf("Total: %d items, %s\n", result.TotalItems, utils.FormatBytes(result.TotalSize))
	for _, f := range result.FailedCategories {
		r.printf("Failed: %s (%s)\n", f.Category, f.Reason)
	}
	return nil
}

// ReportClean renders a remediation result.
func (r *Reporter) ReportClean(result *cleaner.Result) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		return r.encode(result)
	case FormatTable:
		pathWidth := max(r.width-(9+11+4*2), minPathWidth)
		r.printf("%-9s | %-11s | %s\n", "Status", "Size", "Path")
		r.rule()
		for _, o := range result.Outcomes {
			r.printf("%-9s | %-11s | %s\n", o.Status, utils.FormatBytes(o.Size), truncate(o.Path, pathWidth))
			if o.Reason != "" {
				r.printf("%-9s   %-11s   %s\n", "", "", o.Reason)
			}
			if o.Warning != "" {
				r.printf("%-9s   %-11s   warning: %s\n", "", "", o.Warning)
			}
		}
		r.rule()
		fallthrough
	case FormatSummary:
		verb := "Cleaned"
		if result.DryRun {
			verb = "Would clean"
		}
		r.printf("%s %d of %d items (%s), %d failed, %d skipped in %s\n",
			verb, result.Cleaned, result.Requested, utils.FormatBytes(result.TotalSize),
			result.Failed, result.Skipped, result.Elapsed.Round(time.Millisecond))
		if p := result.Permissions; p != nil {
			r.printf("Permissions: %d removable (%s), %d need elevated rights (%s), %d inaccessible\n",
				len(p.Removable), utils.FormatBytes(p.TotalRemovable),
				len(p.RequiresSudo), utils.FormatBytes(p.TotalRestricted),
				len(p.Inaccessible))
		}
		if summary := cleaner.FormatErrorSummary(result.Errors); summary != "" {
			r.printf("\n%s", summary)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// ReportTrash renders the trash contents.
func (r *Reporter) ReportTrash(items []trash.Item, stats trash.Stats) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		return r.encode(struct {
			Items []trash.Item `json:"items"`
			Stats trash.Stats  `json:"stats"`
		}{items, stats})
	case FormatTable:
		pathWidth := max(r.width-(36+11+14+14+4*3), minPathWidth)
		r.printf("%-36s | %-11s | %-14s | %-14s | %s\n", "ID", "Size", "Deleted", "Expires", "Original Path")
		r.rule()
		now := r.now()
		for _, it := range items {
			r.printf("%-36s | %-11s | %-14s | %-14s | %s\n",
				it.ID,
				utils.FormatBytes(it.Size),
				humanize.RelTime(it.DeletedAt, now, "ago", "from now"),
				humanize.RelTime(it.ExpiresAt, now, "ago", "from now"),
				truncate(it.OriginalPath, pathWidth))
		}
		r.rule()
		fallthrough
	case FormatSummary:
		r.printf("Trash: %d items, %s of %s\n",
			stats.Items, utils.FormatBytes(stats.TotalSize), utils.FormatBytes(stats.MaxSize))
		if !stats.NextExpiry.IsZero() {
			r.printf("Next expiry: %s\n", humanize.RelTime(stats.NextExpiry, r.now(), "ago", "from now"))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// ReportSweep renders one trash sweep.
func (r *Reporter) ReportSweep(res *trash.SweepResult) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		return r.encode(res)
	case FormatTable, FormatSummary:
		r.printf("Swept trash: %d expired, %d evicted, %d orphans, %s freed, %s remaining\n",
			len(res.Expired), len(res.Evicted), res.Orphans,
			utils.FormatBytes(res.Freed), utils.FormatBytes(res.Remaining))
		if res.OverCapacity {
			r.printf("Trash is still over its size cap\n")
		}
		for _, e := range res.Errors {
			r.printf("  error: %s\n", e)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// ReportGrowth renders growth projections.
func (r *Reporter) ReportGrowth(projections []growth.Projection) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		if projections == nil {
			projections = []growth.Projection{}
		}
		return r.encode(projections)
	case FormatTable, FormatSummary:
		if len(projections) == 0 {
			r.printf("Not enough history yet; run a few scans first.\n")
			return nil
		}
		r.printf("%-18s | %-14s | %-11s | %-8s | %s\n", "Category", "Rate/day", "Latest", "Samples", "Disk full in")
		r.rule()
		for _, p := range projections {
			r.printf("%-18s | %-14s | %-11s | %-8d | %s\n",
				p.Category, FormatRate(p.RatePerDay), utils.FormatBytes(p.Latest), p.Samples, FormatDays(p))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// FormatRate renders a signed byte rate.
func FormatRate(perDay float64) string {
	sign := "+"
	if perDay < 0 {
		sign = "-"
	}
	return sign + humanize.IBytes(uint64(math.Abs(perDay)))
}

// FormatDays renders the exhaustion estimate of p.
func FormatDays(p growth.Projection) string {
	if !p.Growing() {
		return "never"
	}
	if p.DaysUntilExhaustion < 1 {
		return "less than a day"
	}
	return fmt.Sprintf("%s days", humanize.Commaf(math.Round(p.DaysUntilExhaustion)))
}

// encode writes v as JSON, or as YAML keyed by the same json field names.
func (r *Reporter) encode(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if r.format == FormatJSON {
		_, err = fmt.Fprintf(r.writer, "%s\n", data)
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(r.writer)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&node)
}

// blockStyle clears the flow and quoting styles a JSON document decodes
// with.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// SaveToFile saves the scan report to a file
func SaveToFile(result *scanner.Result, path string, format OutputFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reporter := New(file, format)
	return reporter.Report(result)
}

func category(item scanner.Item) string {
	if item.Kind != "" {
		return item.Kind
	}
	return item.Category
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return "..." + s[len(s)-(width-3):]
}
