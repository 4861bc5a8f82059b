package encryption

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mvs-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(
		filepath.Join(dir, "mvs.pub"),
		filepath.Join(dir, "mvs.key"),
	)
}

func TestAgeEncryptor_Setup(t *testing.T) {
	enc := newTestAgeEncryptor(t)

	if enc.IsConfigured() {
		t.Fatal("IsConfigured() = true before setup")
	}
	if err := enc.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !enc.IsConfigured() {
		t.Fatal("IsConfigured() = false after setup")
	}

	// The recipient file is plaintext; the identity file is sealed.
	pub, err := os.ReadFile(enc.recipientPath)
	if err != nil {
		t.Fatalf("reading recipient file: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(pub)), "age1") {
		t.Errorf("recipient file does not hold an age public key: %q", pub)
	}

	key, err := os.ReadFile(enc.identityPath)
	if err != nil {
		t.Fatalf("reading identity file: %v", err)
	}
	if strings.Contains(string(key), "AGE-SECRET-KEY-") {
		t.Error("identity file holds the secret key in plaintext")
	}
}

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	enc := newTestAgeEncryptor(t)
	if err := enc.Setup("passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	plaintext := []byte("snapshot frame bytes")
	var sealed bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader(plaintext), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Contains(sealed.Bytes(), plaintext) {
		t.Error("ciphertext contains the plaintext")
	}

	dec, err := enc.Unlock("passphrase")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var opened bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened.Bytes(), plaintext) {
		t.Error("round-trip lost the plaintext")
	}
}

func TestAgeEncryptor_WrongPassphrase(t *testing.T) {
	enc := newTestAgeEncryptor(t)
	if err := enc.Setup("right"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := enc.Unlock("wrong"); err == nil {
		t.Fatal("Unlock() with wrong passphrase succeeded")
	}
}

func TestTestEncryptor_RoundTrip(t *testing.T) {
	enc := NewTestEncryptor()
	plaintext := []byte("some frame")

	var sealed bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader(plaintext), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(sealed.Bytes(), plaintext) {
		t.Error("test encryptor output equals input")
	}

	dec, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var opened bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened.Bytes(), plaintext) {
		t.Error("round-trip lost the plaintext")
	}

	var bad bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(plaintext), &bad); err == nil {
		t.Error("Decrypt() accepted data without the test header")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		wantNil bool
		wantErr bool
	}{
		{name: "empty type", cfg: config.EncryptionConfig{}, wantNil: true},
		{name: "none", cfg: config.EncryptionConfig{Type: "none"}, wantNil: true},
		{name: "test", cfg: config.EncryptionConfig{Type: "test"}},
		{
			name: "age",
			cfg: config.EncryptionConfig{
				Type:          "age",
				RecipientPath: "/tmp/mvs.pub",
				IdentityPath:  "/tmp/mvs.key",
			},
		},
		{name: "age missing paths", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "unknown type", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptorFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %t", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (enc == nil) != tt.wantNil {
				t.Errorf("encryptor = %v, wantNil %t", enc, tt.wantNil)
			}
		})
	}
}
