package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/prdeepak/ms365-access/internal/adapters/driven/audit"
	"github.com/prdeepak/ms365-access/internal/adapters/driven/oauth"
	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage"
	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage/file"
	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage/sealer"
	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage/sqlite"
	"github.com/prdeepak/ms365-access/internal/adapters/driving/cli"
	"github.com/prdeepak/ms365-access/internal/adapters/driving/httpapi"
	"github.com/prdeepak/ms365-access/internal/config"
	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
	"github.com/prdeepak/ms365-access/internal/core/services"
	"github.com/prdeepak/ms365-access/internal/logger"
)

var version = "dev"

func main() {
	os.Exit(run())
}

//nolint:funlen // main initialisation requires sequential setup of all dependencies
func run() int {
	cli.SetVersion(version)

	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	logger.Init(cfg.LogFormat)
	defer logger.Sync()

	if err := cfg.ValidateStorage(); err != nil {
		log.Printf("invalid configuration: %v", err)
		return 1
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Printf("failed to create data directory: %v", err)
		return 1
	}

	// Previous key only decrypts; records sealed with it are re-sealed on Restore.
	var previous []sealer.Key
	if cfg.SecretKeyPrevious != "" {
		previous = append(previous, sealer.Key{Version: cfg.SecretKeyVersion - 1, Secret: cfg.SecretKeyPrevious})
	}
	seal, err := sealer.New(sealer.Key{Version: cfg.SecretKeyVersion, Secret: cfg.SecretKey}, previous...)
	if err != nil {
		log.Printf("failed to create sealer: %v", err)
		return 1
	}
	codec := storage.NewCodec(seal)

	ctx := context.Background()

	var store driven.CredentialStore
	switch cfg.CredentialBackend {
	case config.BackendSQLite:
		db, err := sqlite.New(ctx, cfg.DatabasePath(), codec)
		if err != nil {
			log.Printf("failed to open credential database: %v", err)
			return 1
		}
		defer db.Close()
		store = db
	default:
		fs, err := file.New(cfg.CredentialPath(), codec)
		if err != nil {
			log.Printf("failed to open credential file: %v", err)
			return 1
		}
		store = fs
	}

	clock := driven.SystemClock{}
	auditLog := audit.New(cfg.AuditLogPath(), audit.WithClock(clock))
	graph := microsoft.NewClient(cfg.GraphBaseURL)

	provider := oauth.NewProvider(oauth.ProviderConfig{
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		TenantID:      cfg.TenantID,
		RedirectURI:   cfg.RedirectURI,
		Scopes:        cfg.Scopes,
		AuthorityBase: cfg.AuthorityBase,
		Clock:         clock,
	})

	manager := services.NewTokenManager(services.TokenManagerDeps{
		Store:    store,
		Audit:    auditLog,
		Provider: provider,
		States:   oauth.NewStateStore(clock),
		Accounts: graph,
		Clock:    clock,
	},
		services.WithSafetyMargin(cfg.TokenSafetyMargin),
		services.WithProviderTimeout(cfg.ProviderTimeout),
	)
	manager.Restore(ctx)

	svc := &cli.Services{
		Tokens:   manager,
		Audit:    audit.NewReader(cfg.AuditLogPath()),
		LoginURL: fmt.Sprintf("http://%s/auth/login", cfg.Addr()),
	}
	if err := cfg.Validate(); err != nil {
		svc.ServerErr = fmt.Errorf("%w. %s", err, microsoft.SetupHint)
	} else {
		svc.Server = httpapi.New(httpapi.Config{
			Addr:         cfg.Addr(),
			AllowedHosts: cfg.AllowedHosts,
			CORSOrigins:  cfg.CORSOrigins,
			Version:      version,
		}, manager, services.NewGate(manager, auditLog), graph)
	}
	cli.SetServices(svc)

	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}
