package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bordkit/auth-front/internal/claims"
	"github.com/bordkit/auth-front/internal/config"
	"github.com/bordkit/auth-front/internal/crypto"
	"github.com/bordkit/auth-front/internal/flow"
	"github.com/bordkit/auth-front/internal/idp"
	"github.com/bordkit/auth-front/internal/log"
	"github.com/bordkit/auth-front/internal/provision"
	"github.com/bordkit/auth-front/internal/registry"
	"github.com/bordkit/auth-front/internal/server"
	"github.com/bordkit/auth-front/internal/session"
	"github.com/bordkit/auth-front/internal/statetoken"
)

var BuildVersion = "dev"

func main() {
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *version {
		fmt.Println(BuildVersion)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting auth-front", map[string]any{
		"version":  BuildVersion,
		"provider": cfg.Provider.Name,
		"addr":     cfg.Addr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.LogError("Fatal: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	stateKey, err := crypto.DeriveKey([]byte(cfg.Secret), "state-token")
	if err != nil {
		return fmt.Errorf("failed to derive state signing key: %w", err)
	}
	sessionKey, err := crypto.DeriveKey([]byte(cfg.Secret), "session-token")
	if err != nil {
		return fmt.Errorf("failed to derive session signing key: %w", err)
	}

	store, err := newRegistryStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open registration store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.LogWarn("Failed to close registration store: %v", err)
		}
	}()

	httpClient := &http.Client{Timeout: cfg.OutboundTimeout}

	var provisioner provision.Provisioner = provision.StubProvisioner{}
	if cfg.ProvisionURL != "" {
		provisioner = provision.NewHTTPProvisioner(cfg.ProvisionURL, string(cfg.ProvisionToken), httpClient)
	}

	client := idp.NewClient(&cfg.Provider, cfg.BaseURL+"/auth/"+cfg.Provider.Name+server.CallbackSuffix, httpClient)
	resolver := claims.NewResolver(
		&cfg.Provider,
		claims.NewUserInfoSource(cfg.Provider.UserInfoURL, client.HTTPClient),
		claims.NewEnrichmentSource(&cfg.Provider, httpClient),
		cfg.SupportedLocales,
	)

	orch := flow.New(
		cfg,
		statetoken.NewCodec(stateKey, cfg.StateTTL),
		idp.NewEndpointResolver(&cfg.Provider, httpClient),
		client,
		resolver,
		provision.NewBridge(store, provisioner, cfg.Provider.Name),
		session.NewCookieEstablisher(sessionKey, 24*time.Hour, cfg.DesktopScheme),
	)

	httpServer := server.NewHTTPServer(server.BuildHandler(cfg, orch), cfg.Addr, cfg.OutboundTimeout)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.LogInfoWithFields("main", "Shutdown signal received", map[string]any{})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Stop(shutdownCtx)
}

func newRegistryStore(ctx context.Context, cfg *config.Config) (registry.Store, error) {
	switch cfg.RegistryDriver {
	case "sqlite":
		return registry.NewSQLiteStore(ctx, cfg.RegistryDSN)
	case "firestore":
		return registry.NewFirestoreStore(ctx, cfg.FirestoreProject, cfg.RegistryCollection)
	case "memory":
		return registry.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown registry driver %q", cfg.RegistryDriver)
	}
}
