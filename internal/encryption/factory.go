package encryption

import (
	"fmt"

	"mvs-go/internal/config"
	"mvs-go/internal/mvs"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration
// type. Type "none" (or empty) returns nil: the codec stores plaintext
// frames.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (mvs.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		if cfg.RecipientPath == "" || cfg.IdentityPath == "" {
			return nil, fmt.Errorf("age encryption requires recipient_path and identity_path")
		}
		return NewAgeEncryptor(cfg.RecipientPath, cfg.IdentityPath), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
