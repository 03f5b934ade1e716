package trash

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/storage"
)

// Sweep purges expired items, reconciles the root against the ledger and
// evicts oldest-first until the store fits its cap. It holds no state
// between calls; running it twice with the same now purges nothing more.
func (s *Store) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	res := &SweepResult{}
	err := s.withLock(ctx, func() error {
		orphans, err := s.reconcile(ctx)
		if err != nil {
			return err
		}
		res.Orphans = orphans

		expired, err := s.ledger.ListExpiredTrashItems(ctx, now)
		if err != nil {
			return err
		}
		for i := range expired {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.purge(ctx, &expired[i]); err != nil {
				res.Errors = append(res.Errors, err.Error())
				continue
			}
			res.Expired = append(res.Expired, expired[i].ID)
			res.Freed += expired[i].Size
		}

		return s.evictOverCapacity(ctx, "", res)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trash sweep complete",
		zap.Int("expired", len(res.Expired)),
		zap.Int("evicted", len(res.Evicted)),
		zap.Int("orphans", res.Orphans),
		zap.Int64("freed", res.Freed))
	return res, nil
}

// evictOverCapacity purges the oldest items until the total size fits the
// cap. The item named by keep is never evicted. A failed purge stops the
// eviction so that no item outlives a newer one; the store is then reported
// over capacity.
func (s *Store) evictOverCapacity(ctx context.Context, keep string, res *SweepResult) error {
	total, err := s.ledger.TrashSize(ctx)
	if err != nil {
		return err
	}
	res.Remaining = total
	if s.maxSize <= 0 || total <= s.maxSize {
		return nil
	}

	items, err := s.ledger.ListTrashItems(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		if total <= s.maxSize {
			break
		}
		if items[i].ID == keep {
			continue
		}
		if err := s.purge(ctx, &items[i]); err != nil {
			res.Errors = append(res.Errors, err.Error())
			s.logger.Warn("eviction stopped", zap.String("id", items[i].ID), zap.Error(err))
			break
		}
		res.Evicted = append(res.Evicted, items[i].ID)
		res.Freed += items[i].Size
		total -= items[i].Size
	}

	res.Remaining = total
	res.OverCapacity = total > s.maxSize
	if res.OverCapacity {
		s.logger.Warn("trash over capacity after eviction",
			zap.Int64("total", total),
			zap.Int64("limit", s.maxSize))
	}
	return nil
}

// reconcile removes entries under the root that have no ledger row and
// drops rows whose trashed entry has vanished.
func (s *Store) reconcile(ctx context.Context) (int, error) {
	items, err := s.ledger.ListTrashItems(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(items))
	orphans := 0

	for _, it := range items {
		known[filepath.Base(it.TrashPath)] = true
		if _, err := os.Lstat(it.TrashPath); errors.Is(err, fs.ErrNotExist) {
			err := s.ledger.RunInTransaction(ctx, func(tx storage.Transaction) error {
				return tx.DeleteTrashItem(ctx, it.ID)
			})
			if err != nil {
				return orphans, err
			}
			s.logger.Warn("dropped ledger row with missing entry", zap.String("id", it.ID))
			orphans++
		}
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return orphans, err
	}
	for _, e := range entries {
		if e.Name() == lockFileName || known[e.Name()] {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("remove orphaned trash entry", zap.String("path", path), zap.Error(err))
			continue
		}
		s.logger.Warn("removed orphaned trash entry", zap.String("path", path))
		orphans++
	}
	return orphans, nil
}
