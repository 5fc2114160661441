package vault

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, path string, names ...string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for _, name := range names {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write([]byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"../../etc/passwd",
		"../sibling.zip",
		"/etc/passwd",
		"a/../../escape.zip",
		"",
		".",
	} {
		if _, err := store.Path(name); !errors.Is(err, ErrForbidden) {
			t.Errorf("Path(%q) = %v, want ErrForbidden", name, err)
		}
	}
}

func TestPathAcceptsPlainNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := store.Path("plugin.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rootAbs, err := filepath.Abs(store.Root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(resolved) != rootAbs {
		t.Errorf("resolved %q outside root %q", resolved, rootAbs)
	}
}

func TestSaveAndList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(store.Root, "seo.zip"), "seo/seo.php")
	writeZip(t, filepath.Join(store.Root, "dark.zip"), "dark/style.css")
	// Non-zip files are ignored.
	if err := os.WriteFile(filepath.Join(store.Root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	types := map[string]string{}
	for _, item := range items {
		types[item.Name] = item.Type
		if !strings.HasSuffix(item.Size, " MB") {
			t.Errorf("size format = %q", item.Size)
		}
	}
	if types["seo.zip"] != TypePlugin {
		t.Errorf("seo.zip classified as %q", types["seo.zip"])
	}
	if types["dark.zip"] != TypeTheme {
		t.Errorf("dark.zip classified as %q", types["dark.zip"])
	}
}

func TestDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(store.Root, "seo.zip"), "seo/seo.php")

	if err := store.Delete("seo.zip"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete("seo.zip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := store.Delete("../escape.zip"); !errors.Is(err, ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden", err)
	}
}

func TestClassifyDepth(t *testing.T) {
	dir := t.TempDir()

	shallow := filepath.Join(dir, "shallow.zip")
	writeZip(t, shallow, "style.css")
	if got := Classify(shallow); got != TypeTheme {
		t.Errorf("root style.css = %q, want theme", got)
	}

	nested := filepath.Join(dir, "nested.zip")
	writeZip(t, nested, "theme/style.css", "theme/index.php")
	if got := Classify(nested); got != TypeTheme {
		t.Errorf("depth-two style.css = %q, want theme", got)
	}

	deep := filepath.Join(dir, "deep.zip")
	writeZip(t, deep, "plugin/assets/css/style.css", "plugin/plugin.php")
	if got := Classify(deep); got != TypePlugin {
		t.Errorf("deep style.css = %q, want plugin", got)
	}

	broken := filepath.Join(dir, "broken.zip")
	if err := os.WriteFile(broken, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Classify(broken); got != TypePlugin {
		t.Errorf("unreadable archive = %q, want plugin", got)
	}
}
