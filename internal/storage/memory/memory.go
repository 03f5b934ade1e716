// Package memory implements storage.Store in process memory. It is used by
// tests and by the --ephemeral CLI mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fenilsonani/reclaim/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type state struct {
	items   map[string]storage.TrashItem
	samples []storage.Sample
}

func (s *state) clone() *state {
	c := &state{
		items:   make(map[string]storage.TrashItem, len(s.items)),
		samples: append([]storage.Sample(nil), s.samples...),
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	return c
}

// Store is a mutex-guarded in-memory store.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: &state{items: make(map[string]storage.TrashItem)}}
}

// RunInTransaction runs fn against a copy and swaps it in on success.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&view{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) locked(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.st})
}

func (s *Store) InsertTrashItem(ctx context.Context, item *storage.TrashItem) error {
	return s.locked(func(v *view) error { return v.InsertTrashItem(ctx, item) })
}

func (s *Store) UpdateTrashItem(ctx context.Context, item *storage.TrashItem) error {
	return s.locked(func(v *view) error { return v.UpdateTrashItem(ctx, item) })
}

func (s *Store) DeleteTrashItem(ctx context.Context, id string) error {
	return s.locked(func(v *view) error { return v.DeleteTrashItem(ctx, id) })
}

func (s *Store) GetTrashItem(ctx context.Context, id string) (item *storage.TrashItem, err error) {
	err = s.locked(func(v *view) error {
		item, err = v.GetTrashItem(ctx, id)
		return err
	})
	return item, err
}

func (s *Store) ListTrashItems(ctx context.Context) (items []storage.TrashItem, err error) {
	err = s.locked(func(v *view) error {
		items, err = v.ListTrashItems(ctx)
		return err
	})
	return items, err
}

func (s *Store) ListExpiredTrashItems(ctx context.Context, before time.Time) (items []storage.TrashItem, err error) {
	err = s.locked(func(v *view) error {
		items, err = v.ListExpiredTrashItems(ctx, before)
		return err
	})
	return items, err
}

func (s *Store) TrashSize(ctx context.Context) (size int64, err error) {
	err = s.locked(func(v *view) error {
		size, err = v.TrashSize(ctx)
		return err
	})
	return size, err
}

func (s *Store) AppendSample(ctx context.Context, sample storage.Sample) error {
	return s.locked(func(v *view) error { return v.AppendSample(ctx, sample) })
}

func (s *Store) RangeSamples(ctx context.Context, category string, from, to time.Time) (out []storage.Sample, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.RangeSamples(ctx, category, from, to)
		return err
	})
	return out, err
}

func (s *Store) DeleteSamplesBefore(ctx context.Context, ts time.Time) (n int, err error) {
	err = s.locked(func(v *view) error {
		n, err = v.DeleteSamplesBefore(ctx, ts)
		return err
	})
	return n, err
}

func (s *Store) SampleCategories(ctx context.Context) (out []string, err error) {
	err = s.locked(func(v *view) error {
		out, err = v.SampleCategories(ctx)
		return err
	})
	return out, err
}

// view implements storage.Transaction over a state the caller has locked.
type view struct {
	st *state
}

func (v *view) InsertTrashItem(_ context.Context, item *storage.TrashItem) error {
	if _, ok := v.st.items[item.ID]; ok {
		return fmt.Errorf("trash item %s: %w", item.ID, storage.ErrConflict)
	}
	v.st.items[item.ID] = *item
	return nil
}

func (v *view) UpdateTrashItem(_ context.Context, item *storage.TrashItem) error {
	if _, ok := v.st.items[item.ID]; !ok {
		return fmt.Errorf("trash item %s: %w", item.ID, storage.ErrNotFound)
	}
	v.st.items[item.ID] = *item
	return nil
}

func (v *view) DeleteTrashItem(_ context.Context, id string) error {
	if _, ok := v.st.items[id]; !ok {
		return fmt.Errorf("trash item %s: %w", id, storage.ErrNotFound)
	}
	delete(v.st.items, id)
	return nil
}

func (v *view) GetTrashItem(_ context.Context, id string) (*storage.TrashItem, error) {
	item, ok := v.st.items[id]
	if !ok {
		return nil, fmt.Errorf("trash item %s: %w", id, storage.ErrNotFound)
	}
	return &item, nil
}

func (v *view) ListTrashItems(_ context.Context) ([]storage.TrashItem, error) {
	out := make([]storage.TrashItem, 0, len(v.st.items))
	for _, item := range v.st.items {
		out = append(out, item)
	}
	sortByDeleted(out)
	return out, nil
}

func (v *view) ListExpiredTrashItems(_ context.Context, before time.Time) ([]storage.TrashItem, error) {
	var out []storage.TrashItem
	for _, item := range v.st.items {
		if !item.ExpiresAt.After(before) {
			out = append(out, item)
		}
	}
	sortByDeleted(out)
	return out, nil
}

func (v *view) TrashSize(_ context.Context) (int64, error) {
	var total int64
	for _, item := range v.st.items {
		total += item.Size
	}
	return total, nil
}

func (v *view) AppendSample(_ context.Context, s storage.Sample) error {
	v.st.samples = append(v.st.samples, s)
	return nil
}

func (v *view) RangeSamples(_ context.Context, category string, from, to time.Time) ([]storage.Sample, error) {
	var out []storage.Sample
	for _, s := range v.st.samples {
		if s.Category == category && !s.Timestamp.Before(from) && !s.Timestamp.After(to) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (v *view) DeleteSamplesBefore(_ context.Context, ts time.Time) (int, error) {
	kept := v.st.samples[:0]
	removed := 0
	for _, s := range v.st.samples {
		if s.Timestamp.Before(ts) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	v.st.samples = kept
	return removed, nil
}

func (v *view) SampleCategories(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, s := range v.st.samples {
		if !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func sortByDeleted(items []storage.TrashItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].DeletedAt.Equal(items[j].DeletedAt) {
			return items[i].DeletedAt.Before(items[j].DeletedAt)
		}
		return items[i].ID < items[j].ID
	})
}
