package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Phase represents the current phase of operation
type Phase string

const (
	PhaseScanning Phase = "scanning"
	PhaseCleaning Phase = "cleaning"
	PhaseComplete Phase = "complete"
	PhaseError    Phase = "error"
)

// Event is one incremental progress update. Percent is the overall scan
// progress in the range 0-100. Done marks the final event of a category.
type Event struct {
	Phase       Phase     `json:"phase"`
	Category    string    `json:"category"`
	Percent     int       `json:"progress"`
	Message     string    `json:"message"`
	ItemsFound  int       `json:"items_found"`
	CurrentSize int64     `json:"current_size"`
	Done        bool      `json:"done,omitempty"`
	Time        time.Time `json:"time"`
}

// CleanProgress represents progress during cleanup
type CleanProgress struct {
	Phase       Phase
	CurrentPath string
	Done        int
	Total       int
	Failed      int
	FreedSize   int64
	StartTime   time.Time
}

// Sink receives progress events. Implementations must not block.
type Sink interface {
	Publish(Event)
}

// Reporter fans progress events out to subscribers. Slow subscribers miss
// events rather than stalling the publisher.
type Reporter struct {
	mu        sync.RWMutex
	last      *Event
	clean     *CleanProgress
	listeners []chan Event
	buffer    int
}

// NewReporter creates a new progress reporter
func NewReporter() *Reporter {
	return &Reporter{buffer: 64}
}

// Subscribe returns a channel that receives progress updates
func (r *Reporter) Subscribe() <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Event, r.buffer)
	r.listeners = append(r.listeners, ch)
	return ch
}

// Unsubscribe closes and removes a listener channel
func (r *Reporter) Unsubscribe(ch <-chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, listener := range r.listeners {
		if listener == ch {
			close(listener)
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Close unsubscribes every listener.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.listeners {
		close(l)
	}
	r.listeners = nil
}

// Publish records ev and notifies listeners without blocking.
func (r *Reporter) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	// Sends happen under the lock so Unsubscribe never closes a channel
	// mid-send.
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &ev
	for _, listener := range r.listeners {
		select {
		case listener <- ev:
		default:
		}
	}
}

// UpdateCleanProgress records the latest cleanup state.
func (r *Reporter) UpdateCleanProgress(update *CleanProgress) {
	r.mu.Lock()
	r.clean = update
	r.mu.Unlock()
}

// Last returns the most recent scan event, or nil.
func (r *Reporter) Last() *Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// GetCleanProgress returns the current clean progress
func (r *Reporter) GetCleanProgress() *CleanProgress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clean
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Overall converts per-phase progress into overall progress.
func Overall(completed, phasePercent, total int) int {
	if total <= 0 {
		return 0
	}
	p := (completed*100 + phasePercent) / total
	if p > 100 {
		p = 100
	}
	return p
}

// FormatEvent returns a human-readable progress line
func FormatEvent(ev Event) string {
	switch ev.Phase {
	case PhaseComplete:
		return fmt.Sprintf("[%3d%%] %s (%d items, %s)", ev.Percent, ev.Message, ev.ItemsFound, FormatBytes(ev.CurrentSize))
	case PhaseError:
		return fmt.Sprintf("[%3d%%] %s: %s", ev.Percent, ev.Category, ev.Message)
	default:
		return fmt.Sprintf("[%3d%%] %-18s %s", ev.Percent, ev.Category, ev.Message)
	}
}

// FormatCleanProgress returns a human-readable clean progress string
func FormatCleanProgress(p *CleanProgress) string {
	if p == nil {
		return "Preparing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseCleaning:
		percentage := 0
		if p.Total > 0 {
			percentage = (p.Done * 100) / p.Total
		}
		return fmt.Sprintf("Cleaning... %d/%d items (%d%%) - %s freed",
			p.Done, p.Total, percentage, FormatBytes(p.FreedSize))
	case PhaseComplete:
		return fmt.Sprintf("Cleanup complete: %d items removed, %d failed (%s) in %s",
			p.Done-p.Failed, p.Failed, FormatBytes(p.FreedSize), FormatDuration(elapsed))
	default:
		return "Preparing cleanup..."
	}
}

// FormatBytes formats bytes in human-readable format
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
