// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

// Package server wires configuration, storage, services and routes into
// a running HTTP server.
package server

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

	"github.com/labstack/echo/v4"
	"github.com/parkwise/accounts/internal/config"
	"github.com/parkwise/accounts/internal/database"
	"github.com/parkwise/accounts/internal/handlers"
	"github.com/parkwise/accounts/internal/middleware"
	"github.com/parkwise/accounts/internal/repository"
	"github.com/parkwise/accounts/internal/services/auth"
	"github.com/parkwise/accounts/internal/services/email"
	"github.com/parkwise/accounts/internal/services/token"
	"github.com/parkwise/accounts/internal/services/verification"
	"github.com/urfave/cli/v3"
)

// sweepInterval is how often expired verification rows are purged.
const sweepInterval = time.Hour

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	slog.SetDefault(newLogger(cfg.Log.Level, cfg.Log.Format))

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	repo := repository.New(db)

	// Services
	signer, err := token.NewSigner(token.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token signer: %w", err)
	}

	ledger := verification.NewService(repo)

	var notifier auth.Notifier
	if cfg.SMTP.Host != "" {
		mailer, mailErr := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
		if mailErr != nil {
			return fmt.Errorf("failed to create email service: %w", mailErr)
		}
		notifier = mailer
	} else {
		slog.Warn("SMTP not configured, verification mail disabled")
	}

	accounts := auth.NewService(repo, auth.NewHasher(cfg.Auth.BcryptCost), ledger, signer, notifier)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e)
	setupRoutes(e, repo, accounts, signer)

	// Housekeeping for the verification ledger
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepExpired(sweepCtx, ledger)

	return startWithGracefulShutdown(ctx, e, cfg)
}

func setupRoutes(e *echo.Echo, repo *repository.Repository, accounts *auth.Service, signer *token.Signer) {
	h := handlers.New(repo)
	authHandlers := handlers.NewAuth(accounts)

	e.GET("/health", h.Health)

	authGroup := e.Group("/auth")
	authGroup.POST("/users/register", authHandlers.Register)
	authGroup.POST("/users/login", authHandlers.Login)
	authGroup.GET("/account/verify", authHandlers.Verify)
	authGroup.POST("/account/resend", authHandlers.Resend)
	authGroup.POST("/refresh", authHandlers.Refresh, middleware.RequireRefreshToken(signer))
	authGroup.GET("/users/me", authHandlers.Me, middleware.RequireAccessToken(signer))
	authGroup.PUT("/users/password", authHandlers.ChangePassword, middleware.RequireAccessToken(signer))
}

// sweepExpired purges expired verification entries until ctx is done.
func sweepExpired(ctx context.Context, ledger *verification.Service) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := ledger.PurgeExpired(ctx)
			if err != nil {
				slog.Error("verification sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("verification sweep", "purged", n)
			}
		}
	}
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
