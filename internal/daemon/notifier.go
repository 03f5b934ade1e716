package daemon

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/growth"
	"github.com/fenilsonani/reclaim/internal/trash"
)

// Notification types.
const (
	TypeStartup     = "startup"
	TypeShutdown    = "shutdown"
	TypeSweep       = "sweep"
	TypeGrowthAlert = "growth_alert"
	TypeJobFailure  = "job_failure"
)

// Notification represents a notification
type Notification struct {
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Notifier delivers daemon notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the daemon log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	fields := []zap.Field{
		zap.String("type", msg.Type),
		zap.String("title", msg.Title),
		zap.Time("timestamp", msg.Timestamp),
	}
	for k, v := range msg.Data {
		fields = append(fields, zap.Any(k, v))
	}
	switch msg.Type {
	case TypeGrowthAlert, TypeJobFailure:
		n.logger.Warn(msg.Message, fields...)
	default:
		n.logger.Info(msg.Message, fields...)
	}
	return nil
}

// MemoryNotifier keeps notifications in memory. The CLI uses it to print
// what a foreground daemon run produced.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify implements Notifier.
func (m *MemoryNotifier) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns a copy of every notification received.
func (m *MemoryNotifier) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}

// Multi fans a notification out to several notifiers and returns the first
// error.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var sweepTemplate = template.Must(template.New("sweep").Funcs(template.FuncMap{
	"bytes": func(n int64) string { return humanize.IBytes(uint64(max(n, 0))) },
}).Parse(`Trash sweep freed {{bytes .Freed}}: {{len .Expired}} expired, {{len .Evicted}} evicted, {{.Orphans}} orphans removed; {{bytes .Remaining}} remains`))

func sweepNotification(res *trash.SweepResult, now time.Time) Notification {
	var buf bytes.Buffer
	if err := sweepTemplate.Execute(&buf, res); err != nil {
		buf.Reset()
		fmt.Fprintf(&buf, "Trash sweep freed %d bytes", res.Freed)
	}
	return Notification{
		Title:     "Trash sweep",
		Message:   buf.String(),
		Timestamp: now,
		Type:      TypeSweep,
		Data: map[string]interface{}{
			"expired": len(res.Expired),
			"evicted": len(res.Evicted),
			"freed":   res.Freed,
		},
	}
}

func growthAlert(p growth.Projection, now time.Time) Notification {
	return Notification{
		Title: "Disk space projection",
		Message: fmt.Sprintf("%s is growing %s/day; disk full in about %.0f days",
			p.Category, humanize.IBytes(uint64(max(p.RatePerDay, 0))), p.DaysUntilExhaustion),
		Timestamp: now,
		Type:      TypeGrowthAlert,
		Data: map[string]interface{}{
			"category":     p.Category,
			"rate_per_day": p.RatePerDay,
			"days":         p.DaysUntilExhaustion,
		},
	}
}
