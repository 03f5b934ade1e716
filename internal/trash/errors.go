package trash

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown trash ids.
	ErrNotFound = errors.New("trash item not found")
	// ErrRestoreConflict is returned when the original path is occupied.
	ErrRestoreConflict = errors.New("restore target already exists")
	// ErrCapacity is a warning: the ledger is still over its size cap after
	// eviction. The triggering move has succeeded.
	ErrCapacity = errors.New("trash over capacity")
	// ErrCrossDevice marks a move that needed a copy fallback and failed.
	ErrCrossDevice = errors.New("cross-device move failed")
	// ErrInsideTrash is returned when asked to trash the trash root itself.
	ErrInsideTrash = errors.New("path is inside the trash root")
)

// CapacityError reports how far over the cap the ledger remains.
type CapacityError struct {
	Total int64
	Limit int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("trash over capacity: %d bytes used, limit %d", e.Total, e.Limit)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}
