// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrNameEmpty         = errors.New("file name cannot be empty")
	ErrNamePathTraversal = errors.New("file name contains path separator, parent reference or null byte")
	ErrDirEmpty          = errors.New("directory cannot be empty")
)

// stagingFileMode keeps staged input private to the service user.
const stagingFileMode = 0o600

// WriteStagingFile creates dir/name exclusively and writes content to it.
// The create fails if the file already exists, so two jobs can never share a
// staging file. Returns the absolute path and a cleanup function that removes
// the file and reports removal failures to the caller.
func WriteStagingFile(dir, name, content string) (path string, cleanup func() error, err error) {
	if dir == "" {
		return "", nil, ErrDirEmpty
	}
	if err := ValidateName(name); err != nil {
		return "", nil, err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving staging directory: %w", err)
	}
	path = filepath.Join(absDir, name)

	// #nosec G304 -- name is validated above and generated by the caller
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, stagingFileMode)
	if err != nil {
		return "", nil, fmt.Errorf("creating staging file: %w", err)
	}

	cleanup = func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	if _, writeErr := f.WriteString(content); writeErr != nil {
		_ = f.Close()
		_ = cleanup()
		return "", nil, fmt.Errorf("writing staging file: %w", writeErr)
	}

	if closeErr := f.Close(); closeErr != nil {
		_ = cleanup()
		return "", nil, fmt.Errorf("closing staging file: %w", closeErr)
	}

	return path, cleanup, nil
}

// ValidateName checks that name is a single path element safe to join to a directory.
func ValidateName(name string) error {
	if name == "" {
		return ErrNameEmpty
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, "..") {
		return ErrNamePathTraversal
	}
	return nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// DirWritable reports whether a file can be created inside dir.
func DirWritable(dir string) error {
	if dir == "" {
		return ErrDirEmpty
	}
	f, err := os.CreateTemp(dir, ".vulcan-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
