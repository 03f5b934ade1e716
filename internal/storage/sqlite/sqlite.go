// Package sqlite implements storage.Store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	// Import SQLite driver
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/fenilsonani/reclaim/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using SQLite
type Store struct {
	queries
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	var connStr string
	inMemory := path == ":memory:"
	if inMemory {
		connStr = "file::memory:?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		connStr = "file:" + path + "?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{queries: queries{q: db}, db: db, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

const trashColumns = `id, original_path, trash_path, deleted_at, expires_at, size, item_type, category, kind, risk_level, reason`

func (s queries) InsertTrashItem(ctx context.Context, item *storage.TrashItem) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO trash_items (`+trashColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OriginalPath, item.TrashPath,
		item.DeletedAt.UnixNano(), item.ExpiresAt.UnixNano(),
		item.Size, item.ItemType,
		item.Metadata.Category, item.Metadata.Kind, item.Metadata.RiskLevel, item.Metadata.Reason)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("trash item %s: %w", item.ID, storage.ErrConflict)
		}
		return fmt.Errorf("failed to insert trash item: %w", err)
	}
	return nil
}

func (s queries) UpdateTrashItem(ctx context.Context, item *storage.TrashItem) error {
	res, err := s.q.ExecContext(ctx, `UPDATE trash_items SET original_path = ?, trash_path = ?, deleted_at = ?, expires_at = ?,
		size = ?, item_type = ?, category = ?, kind = ?, risk_level = ?, reason = ? WHERE id = ?`,
		item.OriginalPath, item.TrashPath, item.DeletedAt.UnixNano(), item.ExpiresAt.UnixNano(),
		item.Size, item.ItemType, item.Metadata.Category, item.Metadata.Kind, item.Metadata.RiskLevel, item.Metadata.Reason,
		item.ID)
	if err != nil {
		return fmt.Errorf("failed to update trash item: %w", err)
	}
	return expectRow(res, item.ID)
}

func (s queries) DeleteTrashItem(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM trash_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trash item: %w", err)
	}
	return expectRow(res, id)
}

func (s queries) GetTrashItem(ctx context.Context, id string) (*storage.TrashItem, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+trashColumns+` FROM trash_items WHERE id = ?`, id)
	item, err := scanTrashItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trash item %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trash item: %w", err)
	}
	return item, nil
}

func (s queries) ListTrashItems(ctx context.Context) ([]storage.TrashItem, error) {
	return s.listTrash(ctx, `SELECT `+trashColumns+` FROM trash_items ORDER BY deleted_at, id`)
}

func (s queries) ListExpiredTrashItems(ctx context.Context, before time.Time) ([]storage.TrashItem, error) {
	return s.listTrash(ctx, `SELECT `+trashColumns+` FROM trash_items WHERE expires_at <= ? ORDER BY deleted_at, id`, before.UnixNano())
}

func (s queries) TrashSize(ctx context.Context) (int64, error) {
	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM trash_items`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum trash size: %w", err)
	}
	return total, nil
}

func (s queries) listTrash(ctx context.Context, query string, args ...any) ([]storage.TrashItem, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash items: %w", err)
	}
	defer rows.Close()

	var items []storage.TrashItem
	for rows.Next() {
		item, err := scanTrashItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trash item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s queries) AppendSample(ctx context.Context, sample storage.Sample) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO disk_history (category, ts, size) VALUES (?, ?, ?)`,
		sample.Category, sample.Timestamp.UnixNano(), sample.Size)
	if err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}
	return nil
}

func (s queries) RangeSamples(ctx context.Context, category string, from, to time.Time) ([]storage.Sample, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT category, ts, size FROM disk_history
		WHERE category = ? AND ts >= ? AND ts <= ? ORDER BY ts, id`,
		category, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []storage.Sample
	for rows.Next() {
		var (
			sample storage.Sample
			ts     int64
		)
		if err := rows.Scan(&sample.Category, &ts, &sample.Size); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		sample.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, sample)
	}
	return out, rows.Err()
}

func (s queries) DeleteSamplesBefore(ctx context.Context, ts time.Time) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM disk_history WHERE ts < ?`, ts.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune samples: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s queries) SampleCategories(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT category FROM disk_history ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrashItem(r rowScanner) (*storage.TrashItem, error) {
	var (
		item             storage.TrashItem
		deleted, expires int64
	)
	err := r.Scan(&item.ID, &item.OriginalPath, &item.TrashPath, &deleted, &expires,
		&item.Size, &item.ItemType,
		&item.Metadata.Category, &item.Metadata.Kind, &item.Metadata.RiskLevel, &item.Metadata.Reason)
	if err != nil {
		return nil, err
	}
	item.DeletedAt = time.Unix(0, deleted).UTC()
	item.ExpiresAt = time.Unix(0, expires).UTC()
	return &item, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("trash item %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func isConstraintError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "constraint")
}
