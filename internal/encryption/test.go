package encryption

import (
	"bytes"
	"fmt"
	"io"

	"mvs-go/internal/mvs"
)

// testHeader is prepended by TestEncryptor so "encrypted" output is clearly
// different from plaintext while staying deterministic and reversible.
var testHeader = []byte("MVSENC\x00\x00")

// TestEncryptor is a deterministic encryptor for tests: it prepends a fixed
// header on encrypt and strips it on decrypt. No crypto, no key files.
type TestEncryptor struct{}

var _ mvs.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor { return &TestEncryptor{} }

func (*TestEncryptor) Setup(string) error { return nil }

func (*TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (*TestEncryptor) Unlock(string) (mvs.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (*TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ mvs.DecryptionContext = (*TestDecryptionContext)(nil)

func (*TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
