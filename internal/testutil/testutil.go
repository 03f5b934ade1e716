// Package testutil provides filesystem fixtures for reclaim tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestFixture is a throwaway directory tree. Root is canonical (symlinks
// resolved) so paths built from it compare equal to validator output.
type TestFixture struct {
	T    *testing.T
	Root string
}

// NewFixture creates an empty fixture rooted in a fresh temp directory.
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}
	return &TestFixture{T: t, Root: root}
}

// Path returns the absolute path for relPath inside the fixture.
func (f *TestFixture) Path(relPath string) string {
	return filepath.Join(f.Root, relPath)
}

// CreateFile creates a file with specified content and returns its path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := f.Path(relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		f.T.Fatalf("failed to create parent of %s: %v", fullPath, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}
	return fullPath
}

// CreateSizedFile creates a file of size bytes.
func (f *TestFixture) CreateSizedFile(relPath string, size int) string {
	f.T.Helper()
	return f.CreateFile(relPath, bytes.Repeat([]byte{'x'}, size))
}

// CreateFileWithAge creates a file whose modification time is age ago.
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()

	p := f.CreateFile(relPath, content)
	f.SetAge(p, age, time.Now())
	return p
}

// SetAge rewinds the access and modification times of path.
func (f *TestFixture) SetAge(path string, age time.Duration, now time.Time) {
	f.T.Helper()

	ts := now.Add(-age)
	if err := os.Chtimes(path, ts, ts); err != nil {
		f.T.Fatalf("failed to set times on %s: %v", path, err)
	}
}

// CreateDir creates a directory and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := f.Path(relPath)
	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}
	return fullPath
}

// CreateSymlink creates a symlink at linkPath pointing to target.
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLink := f.Path(linkPath)
	if err := os.MkdirAll(filepath.Dir(fullLink), 0o755); err != nil {
		f.T.Fatalf("failed to create parent of %s: %v", fullLink, err)
	}
	if err := os.Symlink(target, fullLink); err != nil {
		f.T.Fatalf("failed to create symlink %s: %v", fullLink, err)
	}
	return fullLink
}

// CreateBrokenSymlink creates a symlink whose target was deleted.
func (f *TestFixture) CreateBrokenSymlink(linkPath string) string {
	f.T.Helper()

	target := f.CreateFile(linkPath+".target", []byte("gone"))
	link := f.CreateSymlink(target, linkPath)
	if err := os.Remove(target); err != nil {
		f.T.Fatalf("failed to remove symlink target: %v", err)
	}
	return link
}

// FileExists reports whether path exists without following symlinks.
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// AssertFileExists fails the test if path does not exist.
func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected %s to exist", path)
	}
}

// AssertFileNotExists fails the test if path exists.
func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected %s not to exist", path)
	}
}

// ReadFile returns the content of path or fails the test.
func (f *TestFixture) ReadFile(path string) []byte {
	f.T.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		f.T.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

// IsRoot reports whether tests run as uid 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// SkipIfRoot skips tests that rely on permission errors.
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if IsRoot() {
		t.Skip("skipping test when running as root")
	}
}
