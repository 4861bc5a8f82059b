package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"mvs-go/internal/codec"
	"mvs-go/internal/config"
	"mvs-go/internal/database"
	"mvs-go/internal/encryption"
	"mvs-go/internal/mvs"
	"mvs-go/internal/vault"
)

// App is the application layer between the CLI/server and the snapshot
// service. It constructs all dependencies from config, exposes the wired
// service, and manages the DB lifecycle on Close.
type App struct {
	cfg       *config.Config
	db        mvs.Database
	vault     mvs.BlobVault
	encryptor mvs.Encryptor
	service   *mvs.Service
	logger    *slogAdapter
	logFile   *os.File
}

// New creates a fully wired App from the given config.
// operation identifies the command being run (e.g. "Serve", "SnapshotSave").
// passphrase unlocks the decryption key when encryption is configured; it may
// be empty, in which case snapshot writes still work (encryption uses the
// public key) but snapshot loads fail until unlocked.
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, operation, passphrase string) (*App, error) {
	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	if err := v.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("validating vault: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	var cdc mvs.Codec
	if enc == nil {
		cdc = codec.New()
	} else {
		var dec mvs.DecryptionContext
		if passphrase != "" {
			dec, err = enc.Unlock(passphrase)
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("unlocking decryption key: %w", err)
			}
		}
		cdc = codec.NewEncrypted(enc, dec)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	la := &slogAdapter{l: logger}
	svc := mvs.NewService(db, v, cdc, la, mvs.RealClock{}, mvs.UUIDGenerator{}, cfg.DefaultAfterTicks())

	return &App{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		service:   svc,
		logger:    la,
		logFile:   logFile,
	}, nil
}

// Service returns the wired snapshot service.
func (a *App) Service() *mvs.Service { return a.service }

// Config returns the config the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the app's structured logger.
func (a *App) Logger() mvs.Logger { return a.logger }

// Close releases all resources.
func (a *App) Close() error {
	var firstErr error

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
