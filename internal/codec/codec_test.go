package codec

import (
	"bytes"
	"compress/gzip"
	"errors"
	"testing"

	"mvs-go/internal/encryption"
	"mvs-go/internal/mvs"
)

func TestCodec_EncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "small payload", payload: []byte("hello multiverse")},
		{name: "single byte", payload: []byte{0x42}},
		{name: "binary payload", payload: bytes.Repeat([]byte{0x00, 0xff, 0x7f}, 1000)},
		{name: "highly compressible", payload: bytes.Repeat([]byte("tick "), 10000)},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := c.Encode(tt.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if blob.ByteSize != int64(len(tt.payload)) {
				t.Errorf("ByteSize = %d, want %d", blob.ByteSize, len(tt.payload))
			}
			if blob.Checksum != Checksum(tt.payload) {
				t.Errorf("Checksum = %q, want %q", blob.Checksum, Checksum(tt.payload))
			}

			got, err := c.Decode(blob.Frame, blob.Checksum)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("Decode() returned different payload: got %d bytes, want %d", len(got), len(tt.payload))
			}
		})
	}
}

func TestCodec_EncodeCompressed(t *testing.T) {
	c := New()
	payload := []byte("pre-compressed snapshot state")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("gzip write error = %v", err)
	}
	zw.Close()

	blob, err := c.EncodeCompressed(gz.Bytes())
	if err != nil {
		t.Fatalf("EncodeCompressed() error = %v", err)
	}

	// Integrity metadata is computed over the uncompressed payload, same as
	// the raw path.
	if blob.Checksum != Checksum(payload) {
		t.Errorf("Checksum = %q, want %q", blob.Checksum, Checksum(payload))
	}
	if blob.ByteSize != int64(len(payload)) {
		t.Errorf("ByteSize = %d, want %d", blob.ByteSize, len(payload))
	}

	got, err := c.Decode(blob.Frame, blob.Checksum)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("round-trip through EncodeCompressed lost the payload")
	}
}

func TestCodec_EncodeCompressedRejectsGarbage(t *testing.T) {
	c := New()
	_, err := c.EncodeCompressed([]byte("this is not a gzip stream"))
	if mvs.KindOf(err) != mvs.KindCorrupt {
		t.Fatalf("EncodeCompressed(garbage) kind = %q, want %q", mvs.KindOf(err), mvs.KindCorrupt)
	}
}

func TestCodec_DecodeFailures(t *testing.T) {
	c := New()
	payload := []byte("state at tick 100")
	blob, err := c.Encode(payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	t.Run("checksum mismatch", func(t *testing.T) {
		_, err := c.Decode(blob.Frame, Checksum([]byte("different payload")))
		if mvs.KindOf(err) != mvs.KindCorrupt {
			t.Errorf("kind = %q, want %q", mvs.KindOf(err), mvs.KindCorrupt)
		}
	})

	t.Run("truncated frame", func(t *testing.T) {
		_, err := c.Decode(blob.Frame[:8], blob.Checksum)
		if mvs.KindOf(err) != mvs.KindCorrupt {
			t.Errorf("kind = %q, want %q", mvs.KindOf(err), mvs.KindCorrupt)
		}
	})

	t.Run("wrong magic", func(t *testing.T) {
		bad := append([]byte{}, blob.Frame...)
		copy(bad, "XXXX")
		_, err := c.Decode(bad, blob.Checksum)
		if mvs.KindOf(err) != mvs.KindCorrupt {
			t.Errorf("kind = %q, want %q", mvs.KindOf(err), mvs.KindCorrupt)
		}
	})

	t.Run("corrupted gzip stream", func(t *testing.T) {
		bad := append([]byte{}, blob.Frame...)
		for i := headerSize; i < len(bad); i++ {
			bad[i] ^= 0xff
		}
		_, err := c.Decode(bad, blob.Checksum)
		if mvs.KindOf(err) != mvs.KindCorrupt {
			t.Errorf("kind = %q, want %q", mvs.KindOf(err), mvs.KindCorrupt)
		}
	})

	t.Run("errors.Is matches the corrupt sentinel", func(t *testing.T) {
		_, err := c.Decode(blob.Frame, "deadbeef")
		if !errors.Is(err, mvs.ErrCorrupt) {
			t.Errorf("errors.Is(err, ErrCorrupt) = false for %v", err)
		}
	})
}

func TestCodec_Encrypted(t *testing.T) {
	enc := encryption.NewTestEncryptor()
	dec, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	payload := []byte("sealed universe state")

	t.Run("round-trip", func(t *testing.T) {
		c := NewEncrypted(enc, dec)
		blob, err := c.Encode(payload)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		// The stored frame must not start with the plaintext magic.
		if bytes.HasPrefix(blob.Frame, frameMagic) {
			t.Error("encrypted frame begins with plaintext magic")
		}

		got, err := c.Decode(blob.Frame, blob.Checksum)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Error("encrypted round-trip lost the payload")
		}
	})

	t.Run("decode without unlock fails", func(t *testing.T) {
		writeOnly := NewEncrypted(enc, nil)
		blob, err := writeOnly.Encode(payload)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		_, err = writeOnly.Decode(blob.Frame, blob.Checksum)
		if mvs.KindOf(err) != mvs.KindIOFailure {
			t.Errorf("kind = %q, want %q", mvs.KindOf(err), mvs.KindIOFailure)
		}
	})

	t.Run("plaintext codec cannot read encrypted frame", func(t *testing.T) {
		c := NewEncrypted(enc, dec)
		blob, err := c.Encode(payload)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		_, err = New().Decode(blob.Frame, blob.Checksum)
		if mvs.KindOf(err) != mvs.KindCorrupt {
			t.Errorf("kind = %q, want %q", mvs.KindOf(err), mvs.KindCorrupt)
		}
	})
}
