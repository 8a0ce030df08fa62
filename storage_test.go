package vulcan

// Notes:
// - Store.Persist: atomic write, permissions, eviction hook
// - Store.Resolve: layered validation (syntax, grammar, canonical path, existence)
// - symlink cases are skipped where the OS refuses to create links

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// recordingHook implements EvictionHook for testing.
type recordingHook struct {
	mu     sync.Mutex
	stored []StoredPDF
}

func (h *recordingHook) Stored(ctx context.Context, pdf StoredPDF) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stored = append(h.stored, pdf)
}

// symlinkOrSkip creates a symlink or skips the test when unsupported.
func symlinkOrSkip(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestNewStore - Storage root setup
// ---------------------------------------------------------------------------

func TestNewStore(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "nested", "pdfs")

	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("storage root not created: %v", err)
	}
	if !filepath.IsAbs(store.Root()) {
		t.Errorf("Root() = %q, want absolute path", store.Root())
	}
}

func TestNewStore_Errors(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		root string
	}{
		{name: "empty", root: ""},
		{name: "whitespace", root: "   "},
		{name: "root is a file", root: file},
		{name: "parent is a file", root: filepath.Join(file, "sub")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewStore(tt.root)
			if !errors.Is(err, ErrStorageRoot) {
				t.Errorf("NewStore(%q) error = %v, want ErrStorageRoot", tt.root, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestStore_Persist - Atomic persistence
// ---------------------------------------------------------------------------

func TestStore_Persist(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	name := NewFilename()
	data := []byte(fakePDF)

	if err := store.Persist(context.Background(), data, name); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	got, err := store.Read(name)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != fakePDF {
		t.Errorf("Read() = %q, want %q", got, fakePDF)
	}

	info, err := os.Stat(filepath.Join(store.Root(), name))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != storedFilePerm && os.PathSeparator == '/' {
		t.Errorf("perm = %o, want %o", info.Mode().Perm(), storedFilePerm)
	}

	entries, _ := os.ReadDir(store.Root())
	if len(entries) != 1 || entries[0].Name() != name {
		t.Errorf("storage root should only contain %s, got %v", name, entries)
	}
}

func TestStore_PersistOverwrites(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	name := NewFilename()
	ctx := context.Background()

	if err := store.Persist(ctx, []byte("first"), name); err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(ctx, []byte("second"), name); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Read(name)
	if string(got) != "second" {
		t.Errorf("Read() = %q, want second", got)
	}
}

func TestStore_PersistRejectsNonCanonical(t *testing.T) {
	t.Parallel()

	store := mustStore(t)

	for _, name := range []string{"", "a.pdf", "../" + NewFilename(), strings.ToUpper(NewFilename())} {
		err := store.Persist(context.Background(), []byte(fakePDF), name)
		if !errors.Is(err, ErrInvalidFilename) {
			t.Errorf("Persist(%q) error = %v, want ErrInvalidFilename", name, err)
		}
	}

	entries, _ := os.ReadDir(store.Root())
	if len(entries) != 0 {
		t.Errorf("nothing should be written, got %d entries", len(entries))
	}
}

func TestStore_PersistCanceled(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Persist(ctx, []byte(fakePDF), NewFilename()); !errors.Is(err, context.Canceled) {
		t.Errorf("Persist() error = %v, want Canceled", err)
	}
}

func TestStore_PersistMissingRoot(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	if err := os.RemoveAll(store.Root()); err != nil {
		t.Fatal(err)
	}

	if err := store.Persist(context.Background(), []byte(fakePDF), NewFilename()); err == nil {
		t.Error("Persist() into missing root should fail")
	}
}

func TestStore_EvictionHook(t *testing.T) {
	t.Parallel()

	hook := &recordingHook{}
	store, err := NewStore(t.TempDir(), WithEvictionHook(hook))
	if err != nil {
		t.Fatal(err)
	}

	name := NewFilename()
	if err := store.Persist(context.Background(), []byte(fakePDF), name); err != nil {
		t.Fatal(err)
	}
	// Rejected writes are not reported.
	_ = store.Persist(context.Background(), []byte(fakePDF), "bad.pdf")

	if len(hook.stored) != 1 {
		t.Fatalf("hook called %d times, want 1", len(hook.stored))
	}
	got := hook.stored[0]
	if got.Filename != name {
		t.Errorf("Filename = %q, want %q", got.Filename, name)
	}
	if got.Path != filepath.Join(store.Root(), name) {
		t.Errorf("Path = %q", got.Path)
	}
	if got.Size != int64(len(fakePDF)) {
		t.Errorf("Size = %d, want %d", got.Size, len(fakePDF))
	}
	if got.StoredAt.IsZero() {
		t.Error("StoredAt should be set")
	}
}

// ---------------------------------------------------------------------------
// TestStore_Resolve - Secure retrieval
// ---------------------------------------------------------------------------

func TestStore_Resolve_InvalidFilename(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	valid := NewFilename()

	tests := []string{
		"",
		"../../etc/passwd",
		"..",
		"a.pdf",
		strings.TrimSuffix(valid, ".pdf") + ".PDF",
		strings.ToUpper(valid),
		strings.TrimSuffix(valid, ".pdf"),
		valid + ".html",
		"sub/" + valid,
		`sub\` + valid,
		".." + valid,
		valid + "\x00",
		" " + valid,
		strings.ReplaceAll(valid, "-", ""),
		".tmp-123456",
	}

	for _, name := range tests {
		if _, err := store.Resolve(name); !errors.Is(err, ErrInvalidFilename) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidFilename", name, err)
		}
	}
}

func TestStore_Resolve_NoFileSystemAccessForBadNames(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	if err := os.RemoveAll(store.Root()); err != nil {
		t.Fatal(err)
	}

	// With the root gone, any file-system access would surface as ErrStorageRoot.
	if _, err := store.Resolve("../../etc/passwd"); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("Resolve() error = %v, want ErrInvalidFilename", err)
	}
	if _, err := store.Resolve(NewFilename()); !errors.Is(err, ErrStorageRoot) {
		t.Errorf("Resolve() error = %v, want ErrStorageRoot", err)
	}
}

func TestStore_Resolve_NotFound(t *testing.T) {
	t.Parallel()

	store := mustStore(t)

	if _, err := store.Read(NewFilename()); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Read() error = %v, want ErrFileNotFound", err)
	}
}

func TestStore_Resolve_DirectoryIsNotFound(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	name := NewFilename()
	if err := os.Mkdir(filepath.Join(store.Root(), name), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Resolve(name); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Resolve() error = %v, want ErrFileNotFound", err)
	}
}

func TestStore_Resolve_SymlinkOutsideRoot(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	outside := filepath.Join(t.TempDir(), "secret.pdf")
	if err := os.WriteFile(outside, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}

	name := NewFilename()
	symlinkOrSkip(t, outside, filepath.Join(store.Root(), name))

	if _, err := store.Resolve(name); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Resolve() error = %v, want ErrAccessDenied", err)
	}
	if _, err := store.Read(name); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Read() error = %v, want ErrAccessDenied", err)
	}
}

func TestStore_Resolve_DanglingSymlink(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	name := NewFilename()
	symlinkOrSkip(t, filepath.Join(t.TempDir(), "gone.pdf"), filepath.Join(store.Root(), name))

	if _, err := store.Resolve(name); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Resolve() error = %v, want ErrAccessDenied", err)
	}
}

func TestStore_Resolve_SymlinkedRoot(t *testing.T) {
	t.Parallel()

	target := mustStore(t)
	link := filepath.Join(t.TempDir(), "link")
	symlinkOrSkip(t, target.Root(), link)

	store, err := NewStore(link)
	if err != nil {
		t.Fatal(err)
	}

	name := NewFilename()
	if err := store.Persist(context.Background(), []byte(fakePDF), name); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read(name)
	if err != nil {
		t.Fatalf("Read() through symlinked root error = %v", err)
	}
	if string(got) != fakePDF {
		t.Errorf("Read() = %q", got)
	}
}

// ---------------------------------------------------------------------------
// TestStore_Remove - Deletion for eviction hooks
// ---------------------------------------------------------------------------

func TestStore_Remove(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	name := NewFilename()
	if err := store.Persist(context.Background(), []byte(fakePDF), name); err != nil {
		t.Fatal(err)
	}

	if err := store.Remove(name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove(name); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("second Remove() error = %v, want ErrFileNotFound", err)
	}
	if err := store.Remove("../x.pdf"); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("Remove(traversal) error = %v, want ErrInvalidFilename", err)
	}
}

func TestStore_Remove_SymlinkInsideRoot(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	keep := filepath.Join(store.Root(), "keep-me.txt")
	if err := os.WriteFile(keep, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	name := NewFilename()
	link := filepath.Join(store.Root(), name)
	symlinkOrSkip(t, keep, link)

	if err := store.Remove(name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Lstat(link); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("link still present after Remove(), Lstat error = %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("link target was touched: %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestNewFilename - Uniqueness
// ---------------------------------------------------------------------------

func TestNewFilename_DistinctForIdenticalContent(t *testing.T) {
	t.Parallel()

	store := mustStore(t)
	ctx := context.Background()

	first, second := NewFilename(), NewFilename()
	if first == second {
		t.Fatalf("NewFilename() repeated %s", first)
	}
	for _, name := range []string{first, second} {
		if err := store.Persist(ctx, []byte(fakePDF), name); err != nil {
			t.Fatal(err)
		}
	}

	entries, _ := os.ReadDir(store.Root())
	if len(entries) != 2 {
		t.Errorf("stored files = %d, want 2", len(entries))
	}
}

func TestWithin(t *testing.T) {
	t.Parallel()

	root := filepath.Join(string(filepath.Separator), "srv", "pdfs")

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "a.pdf"), true},
		{filepath.Join(root, "sub", "a.pdf"), true},
		{root, false},
		{filepath.Dir(root), false},
		{filepath.Join(filepath.Dir(root), "pdfs-evil", "a.pdf"), false},
		{filepath.Join(string(filepath.Separator), "etc", "passwd"), false},
		{filepath.Join(root, "..a.pdf"), true},
	}

	for _, tt := range tests {
		if got := within(root, tt.path); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", root, tt.path, got, tt.want)
		}
	}
}
