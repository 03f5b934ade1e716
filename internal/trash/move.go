package trash

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// movePath renames source to destination, falling back to copy and remove
// when they live on different filesystems.
func movePath(rename func(string, string) error, source, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0o700); err != nil {
		return err
	}

	err := rename(source, destination)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}

	if err := copyPathRecursive(source, destination); err != nil {
		_ = os.RemoveAll(destination)
		return fmt.Errorf("%w: %v", ErrCrossDevice, err)
	}
	if err := os.RemoveAll(source); err != nil {
		return fmt.Errorf("%w: copied but could not remove source: %v", ErrCrossDevice, err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

// copyPathRecursive copies files, directories and symlinks, preserving
// permissions and modification times.
func copyPathRecursive(source, destination string) error {
	info, err := os.Lstat(source)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return copySymlink(source, destination)
	case !info.IsDir():
		return copyFile(source, destination, info)
	}

	if err := os.MkdirAll(destination, info.Mode().Perm()); err != nil {
		return err
	}

	err = filepath.WalkDir(source, func(current string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(source, current)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		target := filepath.Join(destination, rel)
		entryInfo, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entryInfo.Mode()&fs.ModeSymlink != 0:
			return copySymlink(current, target)
		case entry.IsDir():
			return os.MkdirAll(target, entryInfo.Mode().Perm())
		default:
			return copyFile(current, target, entryInfo)
		}
	})
	if err != nil {
		return err
	}
	return os.Chtimes(destination, info.ModTime(), info.ModTime())
}

func copySymlink(source, destination string) error {
	target, err := os.Readlink(source)
	if err != nil {
		return err
	}
	return os.Symlink(target, destination)
}

func copyFile(source, destination string, info fs.FileInfo) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destination, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(destination, info.ModTime(), info.ModTime())
}
