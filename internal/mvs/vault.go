package mvs

import (
	"context"
	"io"
)

// BlobVault stores encoded snapshot frames under caller-chosen storage keys.
// Keys use forward slashes (e.g. "alpha/snapshots/0000000500-<uuid>");
// backends map them to their own layout. All operations use io.Reader and
// io.Writer for streaming so large world states never need to be held twice
// in memory.
//
// A Put must be durable before it returns: the blob is only referenced by the
// timeline index after a successful Put, so a half-written blob must never be
// observable under its final key.
type BlobVault interface {
	// Put stores a blob under key. size is the number of bytes that will be
	// read from r; a short or long read is an error.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get retrieves the blob stored under key and writes it to w.
	// A missing key fails with a NotFound taxonomy error, never empty output.
	Get(ctx context.Context, key string, w io.Writer) error

	// Delete removes the blob stored under key. Deleting a missing key fails
	// with NotFound so decay sweeps can report it.
	Delete(ctx context.Context, key string) error

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup(ctx context.Context) error
}
