package security

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a path was rejected.
type ErrorKind int

const (
	KindInvalidPath ErrorKind = iota
	KindTraversalDetected
	KindSystemPathProtected
	KindOutsideSanctionedRoot
	KindNotFound
	KindPermissionDenied
)

func (k ErrorKind) String() string {
	switch k {
	case KindTraversalDetected:
		return "traversal detected"
	case KindSystemPathProtected:
		return "system path protected"
	case KindOutsideSanctionedRoot:
		return "outside sanctioned root"
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	default:
		return "invalid path"
	}
}

// Sentinels for errors.Is matching against a *ValidationError.
var (
	ErrInvalidPath           = errors.New("invalid path")
	ErrTraversalDetected     = errors.New("traversal detected")
	ErrSystemPathProtected   = errors.New("system path protected")
	ErrOutsideSanctionedRoot = errors.New("outside sanctioned root")
	ErrNotFound              = errors.New("path not found")
	ErrPermissionDenied      = errors.New("permission denied")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidPath:           ErrInvalidPath,
	KindTraversalDetected:     ErrTraversalDetected,
	KindSystemPathProtected:   ErrSystemPathProtected,
	KindOutsideSanctionedRoot: ErrOutsideSanctionedRoot,
	KindNotFound:              ErrNotFound,
	KindPermissionDenied:      ErrPermissionDenied,
}

// ValidationError is returned for every rejected path. It is never retryable.
type ValidationError struct {
	Path    string
	Context Context
	Kind    ErrorKind
	Detail  string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Path)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *ValidationError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func reject(path string, ctx Context, kind ErrorKind, detail string, err error) error {
	return &ValidationError{Path: path, Context: ctx, Kind: kind, Detail: detail, Err: err}
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
