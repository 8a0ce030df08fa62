package vulcan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PDFExtension is the suffix of every stored document.
const PDFExtension = ".pdf"

// Storage permissions.
const (
	storageDirPerm  = 0o755
	storedFilePerm  = 0o644
	tempFilePattern = ".tmp-*"
)

// canonicalFilename is the only filename shape ever accepted for retrieval:
// a lowercase hyphenated UUID followed by ".pdf".
var canonicalFilename = regexp.MustCompile(
	`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.pdf$`,
)

// NewFilename returns a fresh canonical filename.
func NewFilename() string {
	return FilenameFor(uuid.NewString())
}

// FilenameFor returns the canonical filename for an identifier produced by uuid.NewString.
func FilenameFor(id string) string {
	return id + PDFExtension
}

// IsCanonicalFilename reports whether name matches the UUID-plus-extension grammar.
func IsCanonicalFilename(name string) bool {
	return canonicalFilename.MatchString(name)
}

// Store keeps rendered PDFs in a single flat directory and serves them back
// to untrusted callers.
type Store struct {
	root string
	hook EvictionHook
	now  func() time.Time
}

var _ Storage = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithEvictionHook registers a hook notified after every successful persist.
func WithEvictionHook(h EvictionHook) StoreOption {
	return func(s *Store) {
		s.hook = h
	}
}

// NewStore returns a Store rooted at root, creating the directory if needed.
func NewStore(root string, opts ...StoreOption) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrStorageRoot)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRoot, err)
	}
	if err := os.MkdirAll(abs, storageDirPerm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrStorageRoot, abs)
	}

	s := &Store{root: abs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute storage directory.
func (s *Store) Root() string {
	return s.root
}

// Persist writes data under filename. The file appears atomically: readers
// either see nothing or the complete document.
func (s *Store) Persist(ctx context.Context, data []byte, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !IsCanonicalFilename(filename) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	tmp, err := os.CreateTemp(s.root, tempFilePattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filename, err)
	}
	if err := os.Chmod(tmpPath, storedFilePerm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", filename, err)
	}

	dest := filepath.Join(s.root, filename)
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("moving %s into place: %w", filename, err)
	}
	committed = true

	if s.hook != nil {
		s.hook.Stored(ctx, StoredPDF{
			Filename: filename,
			Path:     dest,
			Size:     int64(len(data)),
			StoredAt: s.now(),
		})
	}
	return nil
}

// Resolve validates an untrusted filename and returns the canonical path of
// the stored file.
//
// Checks run in order and each one is a hard rejection:
//  1. separators, ".." and empty names: ErrInvalidFilename
//  2. anything but the canonical grammar: ErrInvalidFilename
//  3. canonical path outside the canonical root: ErrAccessDenied
//  4. no regular file at that path: ErrFileNotFound
//
// Steps 1 and 2 never touch the file system.
func (s *Store) Resolve(untrusted string) (string, error) {
	if untrusted == "" ||
		strings.Contains(untrusted, "..") ||
		strings.ContainsAny(untrusted, `/\`) {
		return "", ErrInvalidFilename
	}
	if !IsCanonicalFilename(untrusted) {
		return "", ErrInvalidFilename
	}

	rootReal, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageRoot, err)
	}

	candidate := filepath.Join(s.root, untrusted)
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		// A dangling link still names something we refuse to follow.
		if _, lerr := os.Lstat(candidate); lerr == nil {
			return "", ErrAccessDenied
		}
		return "", ErrFileNotFound
	}

	if !within(rootReal, resolved) {
		return "", ErrAccessDenied
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrFileNotFound
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", ErrFileNotFound
	}
	return resolved, nil
}

// Read returns the bytes of a stored document after validating its name.
func (s *Store) Read(untrusted string) ([]byte, error) {
	path, err := s.Resolve(untrusted)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path validated by Resolve
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return data, nil
}

// Remove deletes a stored document. Intended for eviction hooks.
// The canonical directory entry is unlinked, never the target of a link.
func (s *Store) Remove(untrusted string) error {
	if _, err := s.Resolve(untrusted); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, untrusted)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrFileNotFound
		}
		return err
	}
	return nil
}

// within reports whether path is strictly inside root. Both must be canonical.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
