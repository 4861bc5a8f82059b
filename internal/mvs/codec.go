package mvs

import "io"

// Blob is the result of encoding a snapshot payload: the framed bytes to
// hand to the vault, plus the integrity metadata recorded on the timeline
// entry. Checksum is computed over the uncompressed payload so integrity can
// be verified independent of the compression format.
type Blob struct {
	Frame    []byte
	Checksum string // SHA-256 hex of the uncompressed payload
	ByteSize int64  // uncompressed payload size
}

// Codec compresses, checksums, and optionally encrypts opaque snapshot
// payloads. It has no knowledge of universes.
type Codec interface {
	// Encode frames a raw payload: compress, length-prefix, checksum.
	Encode(payload []byte) (*Blob, error)

	// EncodeCompressed frames a payload the caller already gzip-compressed.
	// The stream is decompressed once to compute the pre-compression checksum
	// and length; the caller's compressed bytes are stored as-is. An
	// unreadable stream fails Corrupt.
	EncodeCompressed(gz []byte) (*Blob, error)

	// Decode reverses Encode and verifies the recovered payload against
	// wantChecksum. A mismatch or unreadable frame fails Corrupt.
	Decode(frame []byte, wantChecksum string) ([]byte, error)
}

// Encryptor manages the at-rest encryption keys for blob frames.
// Encryption uses the public key only, so snapshot writes need no user
// intervention; decryption requires a passphrase to unlock the private key
// once per process.
type Encryptor interface {
	// Setup performs one-time key generation: stores the public key in
	// plaintext and the private key encrypted with the passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext for the rest of the session. The unlocked key is held
	// in memory only.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext decrypts blob frames for the duration of a session.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
