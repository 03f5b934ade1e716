package cleaner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// PermissionManager answers whether the current user can remove an entry.
type PermissionManager struct {
	isRoot bool
}

// NewPermissionManager creates a new PermissionManager
func NewPermissionManager() *PermissionManager {
	return &PermissionManager{isRoot: os.Geteuid() == 0}
}

// IsRunningAsRoot checks if the current process is running as root
func (pm *PermissionManager) IsRunningAsRoot() bool {
	return pm.isRoot
}

// CanDelete reports whether the parent directory of path is writable. The
// entry itself is not followed, so a symlink is judged by where it lives.
func (pm *PermissionManager) CanDelete(path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		return false, err
	}
	if pm.isRoot {
		return true, nil
	}

	parent := filepath.Dir(path)
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		if err == unix.EACCES || err == unix.EROFS {
			return false, nil
		}
		return false, &fs.PathError{Op: "access", Path: parent, Err: err}
	}

	// A sticky parent only lets owners remove entries
	info, err := os.Stat(parent)
	if err != nil {
		return false, err
	}
	if info.Mode()&os.ModeSticky != 0 {
		var st unix.Stat_t
		if err := unix.Lstat(path, &st); err != nil {
			return false, err
		}
		uid := uint32(os.Geteuid())
		var pst unix.Stat_t
		if err := unix.Stat(parent, &pst); err != nil {
			return false, err
		}
		return st.Uid == uid || pst.Uid == uid, nil
	}
	return true, nil
}

// IsSpecialFile reports whether path is a device, socket or named pipe.
// Symlinks are not followed.
func IsSpecialFile(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeCharDevice != 0:
		return true, fmt.Errorf("is a character device")
	case mode&os.ModeDevice != 0:
		return true, fmt.Errorf("is a device file")
	case mode&os.ModeSocket != 0:
		return true, fmt.Errorf("is a socket")
	case mode&os.ModeNamedPipe != 0:
		return true, fmt.Errorf("is a named pipe (FIFO)")
	}
	return false, nil
}

// IsSafeToDelete performs comprehensive safety checks on a file
func IsSafeToDelete(path string) error {
	isSpecial, err := IsSpecialFile(path)
	if err != nil && !isSpecial {
		return err
	}
	if isSpecial {
		return fmt.Errorf("refusing to delete special file: %w", err)
	}
	return nil
}

// PermissionReport contains analysis of paths by permission requirements
type PermissionReport struct {
	Removable       []string          `json:"removable"`
	RequiresSudo    []string          `json:"requires_sudo"`
	Inaccessible    map[string]string `json:"inaccessible,omitempty"`
	TotalRemovable  int64             `json:"total_removable"`
	TotalRestricted int64             `json:"total_restricted"`
}

// AnalyzePermissions sorts paths by whether the current user can remove
// them. Paths that no longer exist are omitted.
func (pm *PermissionManager) AnalyzePermissions(paths []string, sizeOf func(string) int64) *PermissionReport {
	report := &PermissionReport{
		Removable:    []string{},
		RequiresSudo: []string{},
		Inaccessible: make(map[string]string),
	}

	for _, path := range paths {
		info, err := os.Lstat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			report.Inaccessible[path] = err.Error()
			continue
		}

		size := info.Size()
		if sizeOf != nil {
			size = sizeOf(path)
		}

		canDelete, err := pm.CanDelete(path)
		if err != nil {
			report.Inaccessible[path] = err.Error()
			continue
		}

		if canDelete {
			report.Removable = append(report.Removable, path)
			report.TotalRemovable += size
		} else {
			report.RequiresSudo = append(report.RequiresSudo, path)
			report.TotalRestricted += size
		}
	}

	return report
}
