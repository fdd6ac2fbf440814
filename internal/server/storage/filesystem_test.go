package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *FileSystemStore {
	t.Helper()
	fs := NewFileSystemStore(t.TempDir())
	if err := fs.EnsureDirs(); err != nil {
		t.Fatalf("failed to ensure dirs: %v", err)
	}
	return fs
}

func TestEnsureDirs(t *testing.T) {
	fs := newTestStore(t)
	for _, kind := range []Kind{KindImage, KindJSON} {
		dir := filepath.Join(fs.Root(), string(kind))
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestSave(t *testing.T) {
	t.Run("writes file and returns byte count", func(t *testing.T) {
		fs := newTestStore(t)
		data := []byte(`{"chapters":3}`)

		name, n, err := fs.Save(KindJSON, ".json", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != int64(len(data)) {
			t.Errorf("expected %d bytes written, got %d", len(data), n)
		}

		stored, err := os.ReadFile(filepath.Join(fs.Root(), "json", name))
		if err != nil {
			t.Fatalf("stored file unreadable: %v", err)
		}
		if !bytes.Equal(stored, data) {
			t.Errorf("stored content mismatch")
		}
	})

	t.Run("generated names carry kind prefix and extension", func(t *testing.T) {
		fs := newTestStore(t)

		imgName, _, err := fs.Save(KindImage, ".png", bytes.NewReader([]byte("img")))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(imgName, "script-img-") || !strings.HasSuffix(imgName, ".png") {
			t.Errorf("unexpected image name %q", imgName)
		}

		jsonName, _, err := fs.Save(KindJSON, ".json", bytes.NewReader([]byte("{}")))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(jsonName, "script-json-") || !strings.HasSuffix(jsonName, ".json") {
			t.Errorf("unexpected json name %q", jsonName)
		}
	})

	t.Run("names are unique across saves", func(t *testing.T) {
		fs := newTestStore(t)
		seen := make(map[string]bool)
		for i := 0; i < 20; i++ {
			name, _, err := fs.Save(KindImage, ".png", bytes.NewReader([]byte("x")))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen[name] {
				t.Fatalf("duplicate generated name %q", name)
			}
			seen[name] = true
		}
	})
}

func TestPath(t *testing.T) {
	fs := newTestStore(t)

	name, _, err := fs.Save(KindJSON, ".json", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("existing file resolves", func(t *testing.T) {
		p, err := fs.Path(KindJSON, name)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("resolved path not readable: %v", err)
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, err := fs.Path(KindJSON, "nope.json"); err == nil {
			t.Errorf("expected error for missing file")
		}
	})

	t.Run("directory traversal is neutralized", func(t *testing.T) {
		if _, err := fs.Path(KindJSON, "../../etc/passwd"); err == nil {
			p, _ := fs.Path(KindJSON, "../../etc/passwd")
			t.Errorf("expected traversal to fail, resolved %q", p)
		}
	})
}

func TestDelete(t *testing.T) {
	fs := newTestStore(t)

	name, _, err := fs.Save(KindImage, ".png", bytes.NewReader([]byte("img")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("removes the file", func(t *testing.T) {
		if err := fs.Delete(KindImage, name); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := fs.Path(KindImage, name); err == nil {
			t.Errorf("file still resolvable after delete")
		}
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		if err := fs.Delete(KindImage, "already-gone.png"); err != nil {
			t.Errorf("expected nil for missing file, got %v", err)
		}
	})
}
