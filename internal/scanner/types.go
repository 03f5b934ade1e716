package scanner

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/fenilsonani/reclaim/internal/dupes"
	"github.com/fenilsonani/reclaim/internal/risk"
)

// ItemType describes what an Item points at.
type ItemType string

const (
	TypeFile      ItemType = "file"
	TypeDirectory ItemType = "directory"
	TypeSymlink   ItemType = "symlink"
	TypePackage   ItemType = "package"
)

// Item is a single cleanup candidate.
type Item struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Category     string    `json:"category"`
	Kind         string    `json:"kind,omitempty"`
	ItemType     ItemType  `json:"item_type"`
	Size         int64     `json:"size"`
	Risk         risk.Tier `json:"risk_level"`
	Description  string    `json:"description"`
	Children     []Item    `json:"children,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Dependents   []string  `json:"dependents,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
	ModTime      time.Time `json:"mod_time,omitempty"`
}

// CategoryState tracks a category task.
type CategoryState string

const (
	StatePending   CategoryState = "pending"
	StateRunning   CategoryState = "running"
	StateCompleted CategoryState = "completed"
	StateFailed    CategoryState = "failed"
	StateTimedOut  CategoryState = "timed_out"
)

// Terminal reports whether no further transition is possible.
func (s CategoryState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// CategoryStatus is the final state of one category.
type CategoryStatus struct {
	State    CategoryState `json:"state"`
	Items    int           `json:"items"`
	Size     int64         `json:"size"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	// Partial marks a timed-out category whose items were found before
	// the deadline.
	Partial bool `json:"partial,omitempty"`
}

// FailedCategory records a category that did not complete.
type FailedCategory struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Result is the aggregate outcome of a scan.
type Result struct {
	Items            []Item                    `json:"items"`
	TotalItems       int                       `json:"total_items"`
	TotalSize        int64                     `json:"total_size"`
	FailedCategories []FailedCategory          `json:"failed_categories"`
	Categories       map[string]CategoryStatus `json:"categories"`
	Duplicates       []dupes.Group             `json:"duplicates,omitempty"`
	ScanTime         time.Duration             `json:"scan_time"`
	Timestamp        time.Time                 `json:"timestamp"`
	Fingerprint      string                    `json:"fingerprint"`
	Cached           bool                      `json:"cached"`
}

// clone copies r deeply enough that callers may modify items, statuses and
// duplicate groups without touching the cached copy.
func (r *Result) clone() *Result {
	out := *r
	out.Items = cloneItems(r.Items)
	out.FailedCategories = slices.Clone(r.FailedCategories)
	out.Categories = maps.Clone(r.Categories)
	if r.Duplicates != nil {
		out.Duplicates = make([]dupes.Group, len(r.Duplicates))
		for i, g := range r.Duplicates {
			g.Files = slices.Clone(g.Files)
			out.Duplicates[i] = g
		}
	}
	return &out
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		it.Children = cloneItems(it.Children)
		it.Dependencies = slices.Clone(it.Dependencies)
		it.Dependents = slices.Clone(it.Dependents)
		out[i] = it
	}
	return out
}

// GroupByCategory groups items by their category
func (r *Result) GroupByCategory() map[string][]Item {
	grouped := make(map[string][]Item)
	for _, item := range r.Items {
		grouped[item.Category] = append(grouped[item.Category], item)
	}
	return grouped
}

// Find looks an item up by id.
func (r *Result) Find(id string) (Item, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// CategorySizes returns the total size per category, including categories
// that completed with no items.
func (r *Result) CategorySizes() map[string]int64 {
	out := make(map[string]int64, len(r.Categories))
	for name, st := range r.Categories {
		if st.State == StateCompleted {
			out[name] = st.Size
		}
	}
	return out
}

// sortItems orders items by category rank, then size descending, then path.
func sortItems(items []Item, rank map[string]int) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Category != b.Category {
			return rank[a.Category] < rank[b.Category]
		}
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return a.Path < b.Path
	})
}
