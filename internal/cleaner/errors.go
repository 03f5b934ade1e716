package cleaner

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/trash"
)

var (
	// ErrUnsafeDirectDelete is returned when direct unlink is requested for
	// a kind that must go through the trash.
	ErrUnsafeDirectDelete = errors.New("direct deletion is only allowed for always-safe items")
	// ErrPackageRemoval is returned for package items; removing packages is
	// left to the system package manager.
	ErrPackageRemoval = errors.New("package removal is not supported")
	// ErrPathMismatch is returned when a requested path differs from the
	// path recorded for the item id.
	ErrPathMismatch = errors.New("path does not match scan item")
	// ErrUnpaired is returned for an id without a path or a path without an id.
	ErrUnpaired = errors.New("item id and path are not paired")
)

// ErrorReason categorizes why a deletion failed
type ErrorReason int

const (
	ErrorPermissionDenied ErrorReason = iota
	ErrorFileInUse
	ErrorFileNotFound
	ErrorIsDirectory
	ErrorDirectoryNotEmpty
	ErrorInvalidPath
	ErrorUnsafe
	ErrorCrossDevice
	ErrorUnknown
)

// String returns a human-readable error reason
func (e ErrorReason) String() string {
	switch e {
	case ErrorPermissionDenied:
		return "Permission denied"
	case ErrorFileInUse:
		return "File is in use"
	case ErrorFileNotFound:
		return "File not found"
	case ErrorIsDirectory:
		return "Is a directory"
	case ErrorDirectoryNotEmpty:
		return "Directory not empty"
	case ErrorInvalidPath:
		return "Invalid path"
	case ErrorUnsafe:
		return "Not safe to delete directly"
	case ErrorCrossDevice:
		return "Cross-device move failed"
	case ErrorUnknown:
		return "Unknown error"
	default:
		return "Unspecified error"
	}
}

// DeletionError represents a detailed deletion error
type DeletionError struct {
	Path      string
	Reason    ErrorReason
	Original  error
	Retryable bool
	NeedsSudo bool
}

// Error implements the error interface
func (e *DeletionError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Reason, e.Original)
}

func (e *DeletionError) Unwrap() error {
	return e.Original
}

// UserMessage returns a user-friendly error message
func (e *DeletionError) UserMessage() string {
	switch e.Reason {
	case ErrorPermissionDenied:
		if e.NeedsSudo {
			return fmt.Sprintf("⚠️  Need elevated permissions to delete: %s", e.Path)
		}
		return fmt.Sprintf("⚠️  Permission denied: %s", e.Path)
	case ErrorFileInUse:
		return fmt.Sprintf("⚠️  File is being used: %s (close the application and try again)", e.Path)
	case ErrorFileNotFound:
		return fmt.Sprintf("ℹ️  Already deleted: %s", e.Path)
	case ErrorIsDirectory, ErrorDirectoryNotEmpty:
		return fmt.Sprintf("⚠️  Directory is no longer empty: %s", e.Path)
	case ErrorInvalidPath:
		return fmt.Sprintf("❌ Invalid or unsafe path: %s (%v)", e.Path, e.Original)
	case ErrorUnsafe:
		return fmt.Sprintf("❌ Refusing permanent deletion: %s (%v)", e.Path, e.Original)
	case ErrorCrossDevice:
		return fmt.Sprintf("❌ Could not move to trash across devices: %s", e.Path)
	default:
		return fmt.Sprintf("❌ Error deleting %s: %v", e.Path, e.Original)
	}
}

// CategorizeError analyzes an error and returns a categorized DeletionError
func CategorizeError(path string, err error) *DeletionError {
	if err == nil {
		return nil
	}

	delErr := &DeletionError{
		Path:     path,
		Original: err,
		Reason:   ErrorUnknown,
	}

	// Validation failures are final for the item
	var ve *security.ValidationError
	if errors.As(err, &ve) {
		switch ve.Kind {
		case security.KindNotFound:
			delErr.Reason = ErrorFileNotFound
		case security.KindPermissionDenied:
			delErr.Reason = ErrorPermissionDenied
			delErr.NeedsSudo = true
		default:
			delErr.Reason = ErrorInvalidPath
		}
		return delErr
	}

	switch {
	case errors.Is(err, ErrUnsafeDirectDelete), errors.Is(err, ErrPackageRemoval),
		errors.Is(err, ErrPathMismatch), errors.Is(err, ErrUnpaired), errors.Is(err, trash.ErrInsideTrash):
		delErr.Reason = ErrorUnsafe
		return delErr
	case errors.Is(err, trash.ErrCrossDevice):
		delErr.Reason = ErrorCrossDevice
		return delErr
	}

	// Check syscall errors
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM, syscall.EROFS:
			delErr.Reason = ErrorPermissionDenied
			delErr.NeedsSudo = errno != syscall.EROFS
		case syscall.EBUSY, syscall.ETXTBSY, syscall.EAGAIN, syscall.EINTR:
			delErr.Reason = ErrorFileInUse
			delErr.Retryable = true
		case syscall.ENOENT:
			delErr.Reason = ErrorFileNotFound
		case syscall.EISDIR:
			delErr.Reason = ErrorIsDirectory
		case syscall.ENOTEMPTY, syscall.EEXIST:
			delErr.Reason = ErrorDirectoryNotEmpty
		}
		return delErr
	}

	if os.IsNotExist(err) {
		delErr.Reason = ErrorFileNotFound
	} else if os.IsPermission(err) {
		delErr.Reason = ErrorPermissionDenied
		delErr.NeedsSudo = true
	}
	return delErr
}

// GroupErrors groups deletion errors by reason
func GroupErrors(errs []*DeletionError) map[ErrorReason][]*DeletionError {
	grouped := make(map[ErrorReason][]*DeletionError)
	for _, err := range errs {
		grouped[err.Reason] = append(grouped[err.Reason], err)
	}
	return grouped
}

// FormatErrorSummary creates a user-friendly summary of errors
func FormatErrorSummary(errs []*DeletionError) string {
	if len(errs) == 0 {
		return ""
	}

	grouped := GroupErrors(errs)
	var b strings.Builder
	b.WriteString("\n⚠️  Issues encountered:\n")

	if perms, ok := grouped[ErrorPermissionDenied]; ok {
		fmt.Fprintf(&b, "   ├─ Permission denied: %d items\n", len(perms))
		b.WriteString("   │  └─ Tip: Items outside your ownership are never elevated automatically\n")
	}
	if busy, ok := grouped[ErrorFileInUse]; ok {
		fmt.Fprintf(&b, "   ├─ File in use: %d items\n", len(busy))
		b.WriteString("   │  └─ Tip: Close applications and retry\n")
	}
	if notFound, ok := grouped[ErrorFileNotFound]; ok {
		fmt.Fprintf(&b, "   ├─ Already deleted: %d items\n", len(notFound))
	}
	if dirs := len(grouped[ErrorIsDirectory]) + len(grouped[ErrorDirectoryNotEmpty]); dirs > 0 {
		fmt.Fprintf(&b, "   ├─ Directories changed since scan: %d items\n", dirs)
		b.WriteString("   │  └─ Tip: Re-scan before cleaning\n")
	}
	if invalid, ok := grouped[ErrorInvalidPath]; ok {
		fmt.Fprintf(&b, "   ├─ Rejected paths: %d items\n", len(invalid))
	}
	if unsafe, ok := grouped[ErrorUnsafe]; ok {
		fmt.Fprintf(&b, "   ├─ Not eligible for this action: %d items\n", len(unsafe))
		b.WriteString("   │  └─ Tip: Use the trash for anything that is not always safe\n")
	}
	if xdev, ok := grouped[ErrorCrossDevice]; ok {
		fmt.Fprintf(&b, "   ├─ Cross-device failures: %d items\n", len(xdev))
	}
	if unknown, ok := grouped[ErrorUnknown]; ok {
		fmt.Fprintf(&b, "   └─ Other errors: %d items\n", len(unknown))
	}

	return b.String()
}
