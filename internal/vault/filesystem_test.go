package vault

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mvs-go/internal/mvs"
)

func TestNewFileSystemVault(t *testing.T) {
	t.Run("creates directory structure", func(t *testing.T) {
		tmpDir := t.TempDir()
		root := filepath.Join(tmpDir, "vault")

		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}

		if _, err := os.Stat(filepath.Join(root, "universes")); err != nil {
			t.Errorf("universes directory not created: %v", err)
		}
		if v.name != "test" {
			t.Errorf("name = %q, want %q", v.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemVault("test", t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
	})
}

func TestFileSystemVault_PutGet(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	key := "alpha/snapshots/100-id-1"
	data := []byte("frame bytes")

	t.Run("round-trip", func(t *testing.T) {
		if err := v.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		var got bytes.Buffer
		if err := v.Get(ctx, key, &got); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !bytes.Equal(got.Bytes(), data) {
			t.Errorf("Get() = %q, want %q", got.Bytes(), data)
		}
	})

	t.Run("no staging files left behind", func(t *testing.T) {
		dir := filepath.Dir(v.blobPath(key))
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("reading blob directory: %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".staged-") {
				t.Errorf("staging file %s was not cleaned up", e.Name())
			}
		}
	})

	t.Run("size mismatch rejected and not published", func(t *testing.T) {
		badKey := "alpha/snapshots/101-id-2"
		err := v.Put(ctx, badKey, bytes.NewReader(data), int64(len(data))+5)
		if mvs.KindOf(err) != mvs.KindIOFailure {
			t.Fatalf("Put() kind = %q, want %q", mvs.KindOf(err), mvs.KindIOFailure)
		}
		if err := v.Get(ctx, badKey, &bytes.Buffer{}); mvs.KindOf(err) != mvs.KindNotFound {
			t.Errorf("Get() after failed put kind = %q, want %q", mvs.KindOf(err), mvs.KindNotFound)
		}
	})

	t.Run("get missing key", func(t *testing.T) {
		err := v.Get(ctx, "alpha/snapshots/999-nope", &bytes.Buffer{})
		if mvs.KindOf(err) != mvs.KindNotFound {
			t.Errorf("Get() kind = %q, want %q", mvs.KindOf(err), mvs.KindNotFound)
		}
	})
}

func TestFileSystemVault_Delete(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	key := "beta/canonical/5-id-1"
	if err := v.Put(ctx, key, strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := v.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := v.Get(ctx, key, &bytes.Buffer{}); mvs.KindOf(err) != mvs.KindNotFound {
		t.Errorf("Get() after delete kind = %q, want %q", mvs.KindOf(err), mvs.KindNotFound)
	}
	if err := v.Delete(ctx, key); mvs.KindOf(err) != mvs.KindNotFound {
		t.Errorf("second Delete() kind = %q, want %q", mvs.KindOf(err), mvs.KindNotFound)
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	ctx := context.Background()

	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	gone := &FileSystemVault{name: "gone", root: filepath.Join(t.TempDir(), "missing")}
	if err := gone.ValidateSetup(ctx); mvs.KindOf(err) != mvs.KindIOFailure {
		t.Errorf("ValidateSetup() on missing root kind = %q, want %q", mvs.KindOf(err), mvs.KindIOFailure)
	}
}

func TestFileSystemVault_CanceledContext(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := v.Put(ctx, "k", strings.NewReader("x"), 1); mvs.KindOf(err) != mvs.KindIOFailure {
		t.Errorf("Put() kind = %q, want %q", mvs.KindOf(err), mvs.KindIOFailure)
	}
	if err := v.Get(ctx, "k", &bytes.Buffer{}); mvs.KindOf(err) != mvs.KindIOFailure {
		t.Errorf("Get() kind = %q, want %q", mvs.KindOf(err), mvs.KindIOFailure)
	}
}
