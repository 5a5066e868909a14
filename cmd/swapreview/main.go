package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/efisher/swapreview/internal/adapter/driven/github"
	sqliteadapter "github.com/efisher/swapreview/internal/adapter/driven/sqlite"
	httphandler "github.com/efisher/swapreview/internal/adapter/driving/http"
	"github.com/efisher/swapreview/internal/application"
	"github.com/efisher/swapreview/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"credential_storage", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	ledger := sqliteadapter.NewPledgeRepo(db)
	credStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)

	signingKey, err := loadSigningKey(cfg.GitHubAppKeyPath)
	if err != nil {
		return err
	}
	identity := githubadapter.NewIdentity(cfg.GitHubClientID, cfg.GitHubClientSecret, signingKey)
	approver := githubadapter.NewApprover()

	// 6. Wire application services.
	creds := application.NewCredentialService(credStore, identity)
	router := application.NewRouter()
	engine := application.NewEngine(ledger, creds, approver, router, cfg.AuthorizeBase)

	// 7. Create HTTP handler and server.
	handler := httphandler.NewHandler(engine, creds, slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("swapreview started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// loadSigningKey reads the app's RSA private key from the given PEM file.
// Returns nil when no path is configured; the identity client then
// authenticates with the client secret alone.
func loadSigningKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		return nil, nil
	}

	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return key, nil
}
