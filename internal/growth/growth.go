// Package growth records per-category sizes after each scan and projects
// when the disk holding them will run out of space.
package growth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/storage"
)

// Window is how much history is retained and used for projections.
const Window = 30 * 24 * time.Hour

// ErrInsufficientData is returned when fewer than two distinct samples exist.
var ErrInsufficientData = errors.New("insufficient growth history")

// Infinite is the projection for a category that is not growing.
var Infinite = math.Inf(1)

// Sample is one recorded category size.
type Sample = storage.Sample

// CapacityFunc reports the free bytes available to the tracked data.
type CapacityFunc func(ctx context.Context) (uint64, error)

// DiskCapacity reports free space on the filesystem holding path.
func DiskCapacity(path string) CapacityFunc {
	return func(ctx context.Context) (uint64, error) {
		u, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("disk usage for %s: %w", path, err)
		}
		return u.Free, nil
	}
}

// Projection estimates how a category grows.
type Projection struct {
	Category            string    `json:"category"`
	RatePerDay          float64   `json:"rate_per_day"`
	DaysUntilExhaustion float64   `json:"-"`
	RemainingCapacity   uint64    `json:"remaining_capacity"`
	Samples             int       `json:"samples"`
	Latest              int64     `json:"latest_size"`
	From                time.Time `json:"from"`
	To                  time.Time `json:"to"`
}

// Growing reports whether the category will ever exhaust the disk.
func (p Projection) Growing() bool {
	return !math.IsInf(p.DaysUntilExhaustion, 1)
}

// MarshalJSON encodes an infinite projection as a null day count.
func (p Projection) MarshalJSON() ([]byte, error) {
	type plain Projection
	var days *float64
	if p.Growing() {
		d := p.DaysUntilExhaustion
		days = &d
	}
	return json.Marshal(struct {
		plain
		DaysUntilExhaustion *float64 `json:"days_until_exhaustion"`
	}{plain(p), days})
}

// Config wires an Analytics.
type Config struct {
	History  storage.HistoryStore
	Capacity CapacityFunc
	Logger   *zap.Logger
	Now      func() time.Time
}

// Analytics owns the growth history.
type Analytics struct {
	history  storage.HistoryStore
	capacity CapacityFunc
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an Analytics. A nil Capacity disables exhaustion estimates.
func New(cfg Config) (*Analytics, error) {
	if cfg.History == nil {
		return nil, errors.New("growth: history store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Analytics{
		history:  cfg.History,
		capacity: cfg.Capacity,
		logger:   cfg.Logger.Named("growth"),
		now:      cfg.Now,
	}, nil
}

// Record appends a sample.
func (a *Analytics) Record(ctx context.Context, category string, size int64, ts time.Time) error {
	if category == "" {
		return errors.New("growth: empty category")
	}
	if size < 0 {
		return fmt.Errorf("growth: negative size %d for %s", size, category)
	}
	return a.history.AppendSample(ctx, Sample{Category: category, Timestamp: ts.UTC(), Size: size})
}

// History returns samples for category recorded at or after since.
func (a *Analytics) History(ctx context.Context, category string, since time.Time) ([]Sample, error) {
	return a.history.RangeSamples(ctx, category, since, a.now())
}

// Prune drops samples older than the retention window.
func (a *Analytics) Prune(ctx context.Context, now time.Time) (int, error) {
	n, err := a.history.DeleteSamplesBefore(ctx, now.Add(-Window))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.logger.Debug("pruned growth samples", zap.Int("count", n))
	}
	return n, nil
}

// Project fits a least-squares line through the retained history of
// category and extrapolates it against the remaining capacity.
func (a *Analytics) Project(ctx context.Context, category string) (*Projection, error) {
	now := a.now()
	samples, err := a.history.RangeSamples(ctx, category, now.Add(-Window), now)
	if err != nil {
		return nil, err
	}
	if len(samples) < 2 {
		return nil, fmt.Errorf("%s: %w (%d samples)", category, ErrInsufficientData, len(samples))
	}

	slope, ok := leastSquares(samples)
	if !ok {
		return nil, fmt.Errorf("%s: %w (samples share one timestamp)", category, ErrInsufficientData)
	}

	p := &Projection{
		Category:            category,
		RatePerDay:          slope,
		DaysUntilExhaustion: Infinite,
		Samples:             len(samples),
		Latest:              samples[len(samples)-1].Size,
		From:                samples[0].Timestamp,
		To:                  samples[len(samples)-1].Timestamp,
	}

	if a.capacity == nil {
		return p, nil
	}
	free, err := a.capacity(ctx)
	if err != nil {
		// Unknown capacity never produces an exhaustion estimate.
		a.logger.Warn("capacity unavailable", zap.String("category", category), zap.Error(err))
		return p, nil
	}
	p.RemainingCapacity = free
	if slope > 0 {
		p.DaysUntilExhaustion = float64(free) / slope
	}
	return p, nil
}

// ProjectAll projects every category with enough history, soonest
// exhaustion first.
func (a *Analytics) ProjectAll(ctx context.Context) ([]Projection, error) {
	categories, err := a.history.SampleCategories(ctx)
	if err != nil {
		return nil, err
	}

	var out []Projection
	for _, c := range categories {
		p, err := a.Project(ctx, c)
		if errors.Is(err, ErrInsufficientData) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntilExhaustion != out[j].DaysUntilExhaustion {
			return out[i].DaysUntilExhaustion < out[j].DaysUntilExhaustion
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// leastSquares returns the slope in bytes per day. It fails when every
// sample has the same timestamp.
func leastSquares(samples []Sample) (float64, bool) {
	origin := samples[0].Timestamp
	n := float64(len(samples))

	var sumX, sumY float64
	for _, s := range samples {
		sumX += s.Timestamp.Sub(origin).Hours() / 24
		sumY += float64(s.Size)
	}
	meanX, meanY := sumX/n, sumY/n

	var num, den float64
	for _, s := range samples {
		dx := s.Timestamp.Sub(origin).Hours()/24 - meanX
		num += dx * (float64(s.Size) - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
