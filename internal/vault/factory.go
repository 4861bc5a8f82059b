package vault

import (
	"context"
	"fmt"

	"mvs-go/internal/config"
	"mvs-go/internal/mvs"
)

// NewVaultFromConfig creates a BlobVault implementation based on the vault
// config type.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (mvs.BlobVault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem vault requires root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.Root)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
		}
		return NewS3Vault(ctx, cfg.Name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
