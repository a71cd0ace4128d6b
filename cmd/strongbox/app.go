package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/benaskins/strongbox/internal/audit"
	"github.com/benaskins/strongbox/internal/config"
	"github.com/benaskins/strongbox/internal/keychain"
	"github.com/benaskins/strongbox/internal/kvvault"
)

// app is built once per invocation and handed to the command that needs it.
type app struct {
	cfg   *config.Config
	store *keychain.AuditedStore
	plain *keychain.Store
	audit *audit.Logger
}

func openApp(actor string) (*app, error) {
	config.LoadDotenv()

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if accessGroup != "" {
		cfg.AccessGroup = accessGroup
	}

	vault, err := openVault(cfg)
	if err != nil {
		return nil, err
	}

	for _, p := range []string{cfg.AuditLog, cfg.Metadata} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return nil, fmt.Errorf("creating state dir: %w", err)
		}
	}

	auditLog, err := audit.NewLogger(cfg.AuditLog)
	if err != nil {
		return nil, err
	}
	meta, err := keychain.NewMetadataStore(cfg.Metadata)
	if err != nil {
		auditLog.Close()
		return nil, err
	}

	store := keychain.NewStore(vault, keychain.WithAccessGroup(cfg.AccessGroup))
	return &app{
		cfg:   cfg,
		store: keychain.NewAuditedStore(store, auditLog, meta, actor),
		plain: store,
		audit: auditLog,
	}, nil
}

func openVault(cfg *config.Config) (keychain.Vault, error) {
	switch cfg.Backend {
	case config.BackendOpenBao:
		v, err := kvvault.New(kvvault.Config{
			Address: cfg.OpenBao.Address,
			Token:   cfg.OpenBao.Token,
			Mount:   cfg.OpenBao.Mount,
			Prefix:  cfg.OpenBao.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return keychain.NewSystemVault(cfg.Service), nil
	}
}

func (a *app) Close() error {
	return a.audit.Close()
}
