// Package encryption provides optional at-rest encryption of snapshot
// frames using filippo.io/age X25519 keys. The recipient (public key) lives
// on disk in plaintext so writes need no passphrase; the identity (private
// key) is stored encrypted with a passphrase via age's scrypt recipient and
// is unlocked once per process for reads.
package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"mvs-go/internal/mvs"
)

// AgeEncryptor implements mvs.Encryptor backed by key files on disk.
type AgeEncryptor struct {
	recipientPath string
	identityPath  string
}

var _ mvs.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor reading keys from the given paths.
func NewAgeEncryptor(recipientPath, identityPath string) *AgeEncryptor {
	return &AgeEncryptor{recipientPath: recipientPath, identityPath: identityPath}
}

// Setup generates a fresh X25519 key pair. The recipient is written in
// plaintext; the identity is sealed with the passphrase before it touches
// disk.
func (e *AgeEncryptor) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{e.recipientPath, e.identityPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(e.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing recipient file: %w", err)
	}

	scrypt, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("deriving passphrase recipient: %w", err)
	}

	f, err := os.OpenFile(e.identityPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating identity file: %w", err)
	}
	defer f.Close()

	sealed, err := age.Encrypt(f, scrypt)
	if err != nil {
		return fmt.Errorf("sealing identity: %w", err)
	}
	if _, err := io.WriteString(sealed, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing sealed identity: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("finalizing sealed identity: %w", err)
	}
	return nil
}

// Encrypt seals data from r to w using the on-disk recipient.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := os.ReadFile(e.recipientPath)
	if err != nil {
		return fmt.Errorf("reading recipient file: %w", err)
	}
	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing recipient file: %w", err)
	}
	if len(recipients) == 0 {
		return fmt.Errorf("recipient file %s holds no recipients", e.recipientPath)
	}

	sealed, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(sealed, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock opens the sealed identity with the passphrase and returns a
// decryption context holding it in memory.
func (e *AgeEncryptor) Unlock(passphrase string) (mvs.DecryptionContext, error) {
	sealed, err := os.ReadFile(e.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("deriving passphrase identity: %w", err)
	}
	opened, err := age.Decrypt(bytes.NewReader(sealed), scrypt)
	if err != nil {
		return nil, fmt.Errorf("unsealing identity (wrong passphrase?): %w", err)
	}
	keyData, err := io.ReadAll(opened)
	if err != nil {
		return nil, fmt.Errorf("reading unsealed identity: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("identity file %s holds no identities", e.identityPath)
	}
	return &ageDecryptionContext{identity: identities[0]}, nil
}

// IsConfigured returns true if both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	if _, err := os.Stat(e.recipientPath); err != nil {
		return false
	}
	if _, err := os.Stat(e.identityPath); err != nil {
		return false
	}
	return true
}

type ageDecryptionContext struct {
	identity age.Identity
}

var _ mvs.DecryptionContext = (*ageDecryptionContext)(nil)

func (c *ageDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	opened, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("opening encrypted frame: %w", err)
	}
	if _, err := io.Copy(w, opened); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}
