// Package codec frames opaque snapshot payloads for vault storage:
// gzip compression behind a length prefix, SHA-256 integrity over the
// uncompressed bytes, and an optional at-rest encryption stage.
package codec

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"mvs-go/internal/mvs"
)

// frameMagic identifies a snapshot frame. It sits before the 8-byte
// big-endian uncompressed length and the gzip stream.
var frameMagic = []byte("MVS1")

const headerSize = 4 + 8

// maxPayloadSize bounds a single decoded payload (256 MiB). A frame whose
// length prefix exceeds it is treated as corrupt rather than allocated.
const maxPayloadSize = 256 << 20

// Codec implements mvs.Codec. The zero value is not usable; construct with
// New or NewEncrypted.
type Codec struct {
	enc mvs.Encryptor
	dec mvs.DecryptionContext
}

var _ mvs.Codec = (*Codec)(nil)

// New creates a plaintext codec: frames are compressed and checksummed but
// not encrypted.
func New() *Codec {
	return &Codec{}
}

// NewEncrypted creates a codec that encrypts frames after compression.
// dec may be nil for write-only use; Decode then fails until a decryption
// context is available.
func NewEncrypted(enc mvs.Encryptor, dec mvs.DecryptionContext) *Codec {
	return &Codec{enc: enc, dec: dec}
}

// Checksum returns the hex SHA-256 digest of payload. It is exported so
// callers can verify returned payloads against recorded checksums.
func Checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Encode compresses payload into a frame and computes its checksum.
func (c *Codec) Encode(payload []byte) (*mvs.Blob, error) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(payload); err != nil {
		return nil, mvs.IOFailuref("blob", "", err, "compressing payload")
	}
	if err := zw.Close(); err != nil {
		return nil, mvs.IOFailuref("blob", "", err, "finalizing compressed payload")
	}
	return c.frame(gz.Bytes(), payload)
}

// EncodeCompressed frames a payload the caller already gzip-compressed.
// It decompresses once to compute the pre-compression checksum and length,
// then stores the caller's compressed bytes unchanged.
func (c *Codec) EncodeCompressed(gz []byte) (*mvs.Blob, error) {
	payload, err := gunzip(bytes.NewReader(gz))
	if err != nil {
		return nil, mvs.Corruptf("blob", "", err, "caller-compressed payload is not a readable gzip stream")
	}
	return c.frame(gz, payload)
}

// frame assembles header + compressed stream and applies the encryption
// stage when configured.
func (c *Codec) frame(gz, payload []byte) (*mvs.Blob, error) {
	frame := make([]byte, headerSize, headerSize+len(gz))
	copy(frame, frameMagic)
	binary.BigEndian.PutUint64(frame[4:], uint64(len(payload)))
	frame = append(frame, gz...)

	if c.enc != nil {
		var sealed bytes.Buffer
		if err := c.enc.Encrypt(bytes.NewReader(frame), &sealed); err != nil {
			return nil, mvs.IOFailuref("blob", "", err, "encrypting frame")
		}
		frame = sealed.Bytes()
	}

	return &mvs.Blob{
		Frame:    frame,
		Checksum: Checksum(payload),
		ByteSize: int64(len(payload)),
	}, nil
}

// Decode recovers the payload from a frame and verifies it against
// wantChecksum.
func (c *Codec) Decode(frame []byte, wantChecksum string) ([]byte, error) {
	if c.enc != nil {
		if c.dec == nil {
			return nil, mvs.IOFailuref("blob", "", nil, "encryption configured but private key not unlocked")
		}
		var opened bytes.Buffer
		if err := c.dec.Decrypt(bytes.NewReader(frame), &opened); err != nil {
			return nil, mvs.Corruptf("blob", "", err, "decrypting frame")
		}
		frame = opened.Bytes()
	}

	if len(frame) < headerSize || !bytes.Equal(frame[:4], frameMagic) {
		return nil, mvs.Corruptf("blob", "", nil, "frame header missing or unrecognized")
	}
	wantLen := binary.BigEndian.Uint64(frame[4:headerSize])
	if wantLen > maxPayloadSize {
		return nil, mvs.Corruptf("blob", "", nil, "frame declares implausible payload size %d", wantLen)
	}

	payload, err := gunzip(bytes.NewReader(frame[headerSize:]))
	if err != nil {
		return nil, mvs.Corruptf("blob", "", err, "decompressing frame")
	}
	if uint64(len(payload)) != wantLen {
		return nil, mvs.Corruptf("blob", "", nil, "payload length %d does not match frame prefix %d", len(payload), wantLen)
	}
	if got := Checksum(payload); got != wantChecksum {
		return nil, mvs.Corruptf("blob", "", nil, "checksum mismatch: recorded %s, recomputed %s", wantChecksum, got)
	}
	return payload, nil
}

func gunzip(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(io.LimitReader(zr, maxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading gzip stream: %w", err)
	}
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("payload exceeds %d byte limit", maxPayloadSize)
	}
	return payload, nil
}
