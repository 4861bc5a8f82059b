// Package vault implements blob storage backends for encoded snapshot
// frames: a local filesystem store, an in-memory store for tests, and an
// S3-backed store.
package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mvs-go/internal/mvs"
)

// FileSystemVault stores blobs as files beneath a root directory:
//
//	<root>/universes/<universeID>/snapshots/<key>   (decayable entries)
//	<root>/universes/<universeID>/canonical/<key>   (permanent entries)
//
// The sub-area split comes from the storage key itself; the vault treats
// keys as opaque slash-separated paths. Writes go to a temp file in the
// destination directory and are published with an atomic rename, so a blob
// is never observable half-written under its final key.
type FileSystemVault struct {
	name string
	root string
}

var _ mvs.BlobVault = (*FileSystemVault)(nil)

// NewFileSystemVault creates a filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(filepath.Join(root, "universes"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}
	return &FileSystemVault{name: name, root: root}, nil
}

func (v *FileSystemVault) blobPath(key string) string {
	return filepath.Join(v.root, "universes", filepath.FromSlash(key))
}

// Put stores a blob under key, staging to a temp file and renaming into
// place.
func (v *FileSystemVault) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return mvs.IOFailuref("blob", key, err, "put canceled")
	}

	destPath := v.blobPath(key)
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return mvs.IOFailuref("blob", key, err, "creating blob directory")
	}

	tmp, err := os.CreateTemp(dir, ".staged-*")
	if err != nil {
		return mvs.IOFailuref("blob", key, err, "creating staging file")
	}
	tmpPath := tmp.Name()

	published := false
	defer func() {
		if !published {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return mvs.IOFailuref("blob", key, err, "writing blob data")
	}
	if err := tmp.Close(); err != nil {
		return mvs.IOFailuref("blob", key, err, "closing staging file")
	}
	if written != size {
		return mvs.IOFailuref("blob", key, nil, "size mismatch: expected %d bytes, wrote %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return mvs.IOFailuref("blob", key, err, "publishing blob")
	}
	published = true
	return nil
}

// Get retrieves the blob stored under key and writes it to w.
func (v *FileSystemVault) Get(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return mvs.IOFailuref("blob", key, err, "get canceled")
	}

	f, err := os.Open(v.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return mvs.NotFoundf("blob", key, "blob not found")
		}
		return mvs.IOFailuref("blob", key, err, "opening blob")
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return mvs.IOFailuref("blob", key, err, "reading blob")
	}
	return nil
}

// Delete removes the blob stored under key.
func (v *FileSystemVault) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return mvs.IOFailuref("blob", key, err, "delete canceled")
	}

	if err := os.Remove(v.blobPath(key)); err != nil {
		if os.IsNotExist(err) {
			return mvs.NotFoundf("blob", key, "blob not found")
		}
		return mvs.IOFailuref("blob", key, err, "deleting blob")
	}
	return nil
}

// ValidateSetup verifies that the vault root is accessible.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return mvs.IOFailuref("vault", v.name, err, "vault root not accessible")
	}
	if !info.IsDir() {
		return mvs.IOFailuref("vault", v.name, nil, "vault root %s is not a directory", v.root)
	}
	return nil
}
