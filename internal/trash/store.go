// Package trash implements the reversible deletion store. Items are moved
// under a private root, recorded in a ledger, and purged on expiry or when
// the store exceeds its size cap.
package trash

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/storage"
	"github.com/fenilsonani/reclaim/internal/walker"
)

const (
	DefaultRetentionDays = 7
	MinRetentionDays     = 1
	MaxRetentionDays     = 30

	lockFileName  = ".lock"
	lockRetryWait = 50 * time.Millisecond
)

// Item types recorded in the ledger.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
	TypeSymlink   = "symlink"
)

// Item is a trashed filesystem entry.
type Item = storage.TrashItem

// Metadata records why an item was trashed.
type Metadata = storage.TrashMetadata

// Validator authorizes paths before they are moved or purged.
type Validator interface {
	ValidateEntry(path string, ctx security.Context) (string, error)
}

// Config configures a Store.
type Config struct {
	Root          string
	RetentionDays int
	MaxSize       int64 // bytes, 0 disables the cap
	Ledger        storage.Store
	Validator     Validator
	Logger        *zap.Logger
	Now           func() time.Time
}

// MoveOptions override per-item settings.
type MoveOptions struct {
	RetentionDays int
	Metadata      Metadata
}

// SweepResult summarizes one Sweep.
type SweepResult struct {
	Expired      []string `json:"expired"`
	Evicted      []string `json:"evicted"`
	Orphans      int      `json:"orphans"`
	Freed        int64    `json:"freed"`
	Remaining    int64    `json:"remaining"`
	OverCapacity bool     `json:"over_capacity"`
	Errors       []string `json:"errors,omitempty"`
}

// Stats describes the store contents.
type Stats struct {
	Items      int       `json:"items"`
	TotalSize  int64     `json:"total_size"`
	MaxSize    int64     `json:"max_size"`
	Oldest     time.Time `json:"oldest,omitempty"`
	NextExpiry time.Time `json:"next_expiry,omitempty"`
}

// Store owns the trash root and its ledger. All mutations are serialized
// within the process by a mutex and across processes by a file lock.
type Store struct {
	root          string
	retentionDays int
	maxSize       int64
	ledger        storage.Store
	validator     Validator
	logger        *zap.Logger
	now           func() time.Time

	mu     sync.Mutex
	lock   *flock.Flock
	rename func(oldpath, newpath string) error
}

// New creates the trash root if needed and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("trash root is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("trash ledger is required")
	}
	if cfg.Validator == nil {
		return nil, errors.New("path validator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, fmt.Errorf("create trash root: %w", err)
	}
	root, err := filepath.EvalSymlinks(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve trash root: %w", err)
	}

	return &Store{
		root:          root,
		retentionDays: ClampRetention(cfg.RetentionDays),
		maxSize:       cfg.MaxSize,
		ledger:        cfg.Ledger,
		validator:     cfg.Validator,
		logger:        cfg.Logger.Named("trash"),
		now:           cfg.Now,
		lock:          flock.New(filepath.Join(root, lockFileName)),
		rename:        os.Rename,
	}, nil
}

// ClampRetention bounds days to the supported range; zero selects the default.
func ClampRetention(days int) int {
	switch {
	case days == 0:
		return DefaultRetentionDays
	case days < MinRetentionDays:
		return MinRetentionDays
	case days > MaxRetentionDays:
		return MaxRetentionDays
	}
	return days
}

// Root returns the canonical trash root.
func (s *Store) Root() string { return s.root }

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		return fmt.Errorf("lock trash: %w", err)
	}
	if !locked {
		return errors.New("lock trash: not acquired")
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("unlock trash", zap.Error(err))
		}
	}()
	return fn()
}

// MoveToTrash moves path into the store and records it. When the store is
// still over its cap after evicting older items, the returned item is valid
// and the error matches ErrCapacity.
func (s *Store) MoveToTrash(ctx context.Context, path string, opts MoveOptions) (*Item, error) {
	var item *Item
	var warning error
	err := s.withLock(ctx, func() error {
		canonical, err := s.validator.ValidateEntry(path, security.ContextDeletion)
		if err != nil {
			return err
		}
		if canonical == s.root || strings.HasPrefix(canonical, s.root+string(filepath.Separator)) {
			return fmt.Errorf("%s: %w", canonical, ErrInsideTrash)
		}

		info, err := os.Lstat(canonical)
		if err != nil {
			return err
		}
		size, itemType := s.measure(ctx, canonical, info)

		id := uuid.NewString()
		dest := filepath.Join(s.root, id)
		if err := movePath(s.rename, canonical, dest); err != nil {
			return fmt.Errorf("move %s to trash: %w", canonical, err)
		}

		days := s.retentionDays
		if opts.RetentionDays != 0 {
			days = ClampRetention(opts.RetentionDays)
		}
		deleted := s.now().UTC()
		item = &Item{
			ID:           id,
			OriginalPath: canonical,
			TrashPath:    dest,
			DeletedAt:    deleted,
			ExpiresAt:    deleted.AddDate(0, 0, days),
			Size:         size,
			ItemType:     itemType,
			Metadata:     opts.Metadata,
		}

		err = s.ledger.RunInTransaction(ctx, func(tx storage.Transaction) error {
			return tx.InsertTrashItem(ctx, item)
		})
		if err != nil {
			if rbErr := movePath(s.rename, dest, canonical); rbErr != nil {
				s.logger.Error("rollback trash move failed",
					zap.String("trash_path", dest),
					zap.String("original_path", canonical),
					zap.Error(rbErr))
			}
			item = nil
			return fmt.Errorf("record trash item: %w", err)
		}

		s.logger.Info("moved to trash",
			zap.String("id", id),
			zap.String("path", canonical),
			zap.Int64("size", size))

		res := &SweepResult{}
		if err := s.evictOverCapacity(ctx, id, res); err != nil {
			return err
		}
		if res.OverCapacity {
			warning = &CapacityError{Total: res.Remaining, Limit: s.maxSize}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, warning
}

func (s *Store) measure(ctx context.Context, path string, info fs.FileInfo) (int64, string) {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return 0, TypeSymlink
	case info.IsDir():
		size, err := walker.DirSize(ctx, path)
		if err != nil {
			s.logger.Debug("size directory", zap.String("path", path), zap.Error(err))
		}
		return size, TypeDirectory
	default:
		return info.Size(), TypeFile
	}
}

// Restore moves an item back to its original path. It fails with
// ErrRestoreConflict if that path is occupied.
func (s *Store) Restore(ctx context.Context, id string) (*Item, error) {
	var item *Item
	err := s.withLock(ctx, func() error {
		var err error
		item, err = s.get(ctx, id)
		if err != nil {
			return err
		}

		if _, err := os.Lstat(item.OriginalPath); err == nil {
			return fmt.Errorf("%s: %w", item.OriginalPath, ErrRestoreConflict)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		// The original no longer exists, so only the boundary checks apply.
		if _, err := s.validator.ValidateEntry(item.OriginalPath, security.ContextDeletion); err != nil && !errors.Is(err, security.ErrNotFound) {
			return err
		}

		if err := movePath(s.rename, item.TrashPath, item.OriginalPath); err != nil {
			return fmt.Errorf("restore %s: %w", item.OriginalPath, err)
		}
		err = s.ledger.RunInTransaction(ctx, func(tx storage.Transaction) error {
			return tx.DeleteTrashItem(ctx, id)
		})
		if err != nil {
			if rbErr := movePath(s.rename, item.OriginalPath, item.TrashPath); rbErr != nil {
				s.logger.Error("rollback restore failed", zap.String("id", id), zap.Error(rbErr))
			}
			return fmt.Errorf("remove ledger entry: %w", err)
		}

		s.logger.Info("restored from trash", zap.String("id", id), zap.String("path", item.OriginalPath))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteForever purges a single item.
func (s *Store) DeleteForever(ctx context.Context, id string) (*Item, error) {
	var item *Item
	err := s.withLock(ctx, func() error {
		var err error
		item, err = s.get(ctx, id)
		if err != nil {
			return err
		}
		return s.purge(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List returns every item, oldest first.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.withLock(ctx, func() error {
		var err error
		items, err = s.ledger.ListTrashItems(ctx)
		return err
	})
	return items, err
}

// Get returns one item.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	var item *Item
	err := s.withLock(ctx, func() error {
		var err error
		item, err = s.get(ctx, id)
		return err
	})
	return item, err
}

func (s *Store) get(ctx context.Context, id string) (*Item, error) {
	item, err := s.ledger.GetTrashItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return item, err
}

// Empty purges every item and returns how many were removed and the bytes
// freed.
func (s *Store) Empty(ctx context.Context) (int, int64, error) {
	var count int
	var freed int64
	err := s.withLock(ctx, func() error {
		items, err := s.ledger.ListTrashItems(ctx)
		if err != nil {
			return err
		}
		var errs []error
		for i := range items {
			if err := s.purge(ctx, &items[i]); err != nil {
				errs = append(errs, err)
				continue
			}
			count++
			freed += items[i].Size
		}
		return errors.Join(errs...)
	})
	return count, freed, err
}

// Stats reports the item count and total size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.withLock(ctx, func() error {
		items, err := s.ledger.ListTrashItems(ctx)
		if err != nil {
			return err
		}
		st.Items = len(items)
		st.MaxSize = s.maxSize
		for _, it := range items {
			st.TotalSize += it.Size
			if st.NextExpiry.IsZero() || it.ExpiresAt.Before(st.NextExpiry) {
				st.NextExpiry = it.ExpiresAt
			}
		}
		if len(items) > 0 {
			st.Oldest = items[0].DeletedAt
		}
		return nil
	})
	return st, err
}

// purge removes the trashed entry and then its ledger row. A failed removal
// keeps the row so the item is retried on the next sweep.
func (s *Store) purge(ctx context.Context, item *Item) error {
	if !s.owns(item.TrashPath) {
		return fmt.Errorf("trash path %s is outside %s", item.TrashPath, s.root)
	}
	if _, err := s.validator.ValidateEntry(item.TrashPath, security.ContextDeletion); err != nil && !errors.Is(err, security.ErrNotFound) {
		return err
	}
	if err := os.RemoveAll(item.TrashPath); err != nil {
		return fmt.Errorf("purge %s: %w", item.ID, err)
	}
	err := s.ledger.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.DeleteTrashItem(ctx, item.ID)
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("remove ledger entry %s: %w", item.ID, err)
	}
	s.logger.Debug("purged trash item", zap.String("id", item.ID), zap.Int64("size", item.Size))
	return nil
}

func (s *Store) owns(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != lockFileName && !strings.HasPrefix(rel, "..") && !strings.Contains(rel, string(filepath.Separator))
}
