package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/tokend/internal/tokend/http"
	"github.com/aussiebroadwan/tokend/internal/tokend/service"
	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/internal/tokend/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokend/pkg/cryptox"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
	"github.com/aussiebroadwan/tokend/pkg/metricx"
	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application encapsulates the token service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	hasher     *cryptox.Hasher
	keyManager *jwtx.KeyManager
	metrics    *metricx.Metrics

	// Services
	tokenIssuer         *service.TokenIssuer
	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "tokend",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New validates cfg and constructs every dependency. It fails with
// jwtx.ErrKeyUnavailable when no signing key can be loaded.
func New(cfg Config) (*Application, error) {
	return newApplication(cfg, NewLogger(cfg))
}

func newApplication(cfg Config, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg:     cfg,
		logger:  logger,
		metrics: metricx.New(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	hasher, err := LoadHasher(cfg)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.hasher = hasher

	keyManager, _, err := InitAuthKeys(context.Background(), cfg, app.db, logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keyManager = keyManager

	if active, err := keyManager.ActiveKey(); err == nil {
		app.metrics.SetSigningKey(active.KID(), active.Alg(), keyManager.Source())
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler is the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("tokend starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"issuer", app.cfg.Issuer,
		"token_lifetime", app.cfg.TokenLifetime(),
		"tls", app.cfg.ServesTLS(),
	)
	switch {
	case app.cfg.AllowInsecureTransport:
		app.logger.Warn("plain HTTP token requests are allowed")
	case !app.cfg.ServesTLS() && len(app.cfg.TrustedProxies) == 0:
		app.logger.Warn("no TLS listener and no trusted proxies; token requests will be rejected")
	}

	serverErrors := make(chan error, 1)
	go func() {
		if app.cfg.ServesTLS() {
			serverErrors <- app.server.ListenAndServeTLS(app.cfg.TLSCertFile, app.cfg.TLSKeyFile)
			return
		}
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops accepting requests, waits up to ShutdownGracePeriod for
// in-flight ones and releases the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tokend...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("tokend stopped")
	return nil
}

// OpenStore opens the configured database and applies pending migrations.
func OpenStore(cfg Config) (*sqlite.Store, error) {
	db, err := sqlite.NewStore(databaseDSN(cfg.DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// LoadHasher reads the pepper, creating it on first start.
func LoadHasher(cfg Config) (*cryptox.Hasher, error) {
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	return cryptox.NewHasher(pepper), nil
}

func databaseDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

func (app *Application) initDatabase() error {
	db, err := OpenStore(app.cfg)
	if err != nil {
		return err
	}
	app.db = db
	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initServices() {
	credentials := service.NewCredentialValidator(app.db.Users(), app.hasher, app.cfg.CredentialTimeout)
	credentials.Metrics = app.metrics

	issuer := service.NewTokenIssuer(app.keyManager, app.cfg.Issuer, app.cfg.Audience)
	issuer.Metrics = app.metrics
	app.tokenIssuer = issuer

	app.tokenService = &service.TokenService{
		Credentials:   credentials,
		Issuer:        issuer,
		Lifetime:      app.cfg.TokenLifetime(),
		AllowedGrants: app.cfg.AllowedGrants,
		AllowedScopes: app.cfg.AllowedScopes,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.keyManager,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		httpapi.RouterOptions{
			Issuer:                 app.cfg.Issuer,
			PublicURL:              app.cfg.PublicURL,
			Version:                BuildVersion,
			AllowInsecureTransport: app.cfg.AllowInsecureTransport,
			TrustedProxies:         app.cfg.Proxies(),
			ScopesSupported:        app.cfg.AllowedScopes,
			TokenLimit:             app.cfg.TokenLimit,
			IntrospectLimit:        app.cfg.IntrospectLimit,
			PublicLimit:            app.cfg.PublicLimit,
		},
		app.keyManager,
		app.db,
		app.metrics,
		app.logger,
	)
	router.TokenService = app.tokenService
	router.Tokens = app.tokenIssuer
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
