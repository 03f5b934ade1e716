// Package storage defines the persistence contract for the trash ledger and
// growth history. Concrete engines live in subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when inserting a duplicate id.
	ErrConflict = errors.New("record already exists")
)

// TrashMetadata records why an item was trashed.
type TrashMetadata struct {
	Category  string `json:"category"`
	Kind      string `json:"kind,omitempty"`
	RiskLevel int    `json:"risk_level"`
	Reason    string `json:"reason"`
}

// TrashItem is one ledger row. The original path and category are only
// recoverable from here, never from the trash file name.
type TrashItem struct {
	ID           string        `json:"id"`
	OriginalPath string        `json:"original_path"`
	TrashPath    string        `json:"trash_path"`
	DeletedAt    time.Time     `json:"deleted_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Size         int64         `json:"size"`
	ItemType     string        `json:"item_type"`
	Metadata     TrashMetadata `json:"metadata"`
}

// Sample is one recorded category size.
type Sample struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// TrashLedger persists trash items.
type TrashLedger interface {
	InsertTrashItem(ctx context.Context, item *TrashItem) error
	UpdateTrashItem(ctx context.Context, item *TrashItem) error
	DeleteTrashItem(ctx context.Context, id string) error
	GetTrashItem(ctx context.Context, id string) (*TrashItem, error)
	// ListTrashItems returns every item ordered by DeletedAt, then ID.
	ListTrashItems(ctx context.Context) ([]TrashItem, error)
	// ListExpiredTrashItems returns items with ExpiresAt <= before.
	ListExpiredTrashItems(ctx context.Context, before time.Time) ([]TrashItem, error)
	TrashSize(ctx context.Context) (int64, error)
}

// HistoryStore persists growth samples.
type HistoryStore interface {
	AppendSample(ctx context.Context, s Sample) error
	// RangeSamples returns samples for category with from <= ts <= to,
	// ordered by timestamp.
	RangeSamples(ctx context.Context, category string, from, to time.Time) ([]Sample, error)
	DeleteSamplesBefore(ctx context.Context, ts time.Time) (int, error)
	SampleCategories(ctx context.Context) ([]string, error)
}

// Transaction exposes the ledger and history inside a transaction.
type Transaction interface {
	TrashLedger
	HistoryStore
}

// Store is a transactional store.
type Store interface {
	Transaction
	// RunInTransaction commits when fn returns nil and rolls back otherwise.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error
	Close() error
}
