package vault

import (
	"bytes"
	"context"
	"io"
	"sync"

	"mvs-go/internal/mvs"
)

// MemoryVault is an in-memory implementation of mvs.BlobVault, safe for
// concurrent use. Useful for tests and the "memory" config type.
type MemoryVault struct {
	name  string
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ mvs.BlobVault = (*MemoryVault)(nil)

// NewMemoryVault creates an empty in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{name: name, blobs: make(map[string][]byte)}
}

func (v *MemoryVault) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return mvs.IOFailuref("blob", key, err, "put canceled")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return mvs.IOFailuref("blob", key, err, "reading blob data")
	}
	if int64(len(data)) != size {
		return mvs.IOFailuref("blob", key, nil, "size mismatch: expected %d bytes, read %d", size, len(data))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.blobs[key] = data
	return nil
}

func (v *MemoryVault) Get(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return mvs.IOFailuref("blob", key, err, "get canceled")
	}

	v.mu.RLock()
	data, ok := v.blobs[key]
	v.mu.RUnlock()
	if !ok {
		return mvs.NotFoundf("blob", key, "blob not found")
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return mvs.IOFailuref("blob", key, err, "writing blob data")
	}
	return nil
}

func (v *MemoryVault) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return mvs.IOFailuref("blob", key, err, "delete canceled")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.blobs[key]; !ok {
		return mvs.NotFoundf("blob", key, "blob not found")
	}
	delete(v.blobs, key)
	return nil
}

func (v *MemoryVault) ValidateSetup(context.Context) error { return nil }

// Len returns the number of stored blobs. Test helper.
func (v *MemoryVault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.blobs)
}
