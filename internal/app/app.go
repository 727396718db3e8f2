// Package app wires configuration, storage and the account service
// together for the lostbuddy binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mkrupp/lostbuddy/internal/infra/config"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
	http_ "github.com/mkrupp/lostbuddy/internal/infra/transport/http"
	"github.com/mkrupp/lostbuddy/internal/repo/account"
	"github.com/mkrupp/lostbuddy/internal/repo/blob"
	"github.com/mkrupp/lostbuddy/internal/repo/session"
	"github.com/mkrupp/lostbuddy/internal/svc/authsvc"
	"github.com/mkrupp/lostbuddy/internal/svc/authsvc/authclient"
)

const Name = "lostbuddy"

// Config is the complete configuration of the lostbuddy binaries. Every
// variable is prefixed with LOSTBUDDY_.
type Config struct {
	Log      logging.LoggerConfig        `env-prefix:"LOSTBUDDY_LOG_" yaml:"log"`
	HTTP     authsvc.HTTPTransportConfig `env-prefix:"LOSTBUDDY_HTTP_" yaml:"http"`
	Blob     blob.Config                 `env-prefix:"LOSTBUDDY_BLOB_" yaml:"blob"`
	Accounts account.Config              `env-prefix:"LOSTBUDDY_ACCOUNTS_" yaml:"accounts"`
	Remote   authclient.HTTPClientConfig `env-prefix:"LOSTBUDDY_REMOTE_" yaml:"remote"`
}

// LoadConfig reads Config from the optional file at path and the environment.
func LoadConfig(ctx context.Context, path string) (Config, error) {
	var cfg Config
	if err := config.Parse(ctx, &cfg, path); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// App holds the running account service and the storage it owns.
type App struct {
	Service  *authsvc.AuthService
	Registry *prometheus.Registry

	blobs blob.Repository
}

// New opens the configured storage and builds the account service.
func New(ctx context.Context, cfg Config) (_ *App, err error) {
	log := logging.GetLogger("app")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "init failed", "error", err)
		} else {
			log.DebugContext(ctx, "initialized",
				"blob_backend", cfg.Blob.Backend, "account_backend", cfg.Accounts.Backend)
		}
	}()

	blobs, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("new blob repo: %w", err)
	}

	accounts, err := account.New(ctx, cfg.Accounts, blobs)
	if err != nil {
		_ = blobs.Close()

		return nil, fmt.Errorf("new account repo: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := authsvc.NewMetrics()
	metrics.Register(registry)

	return &App{
		Service:  authsvc.NewAuthService(accounts, session.NewBlobSessionRepository(blobs), metrics),
		Registry: registry,
		blobs:    blobs,
	}, nil
}

// Serve runs the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context, cfg authsvc.HTTPTransportConfig) error {
	transport := authsvc.NewHTTPTransport(a.Service, cfg, a.Registry)

	if err := http_.ListenAndServe(ctx, transport, cfg.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Close closes the service and then the blob repository.
func (a *App) Close() error {
	return errors.Join(a.Service.Close(), a.blobs.Close())
}
