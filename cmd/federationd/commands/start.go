package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abuseshield/federation/internal/api"
	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/internal/version"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the federation server",
	Long: `Start the federation server with the specified configuration.

Examples:
  # Start with the default config location
  federationd start

  # Start with a custom config file
  federationd start --config /etc/federation/config.yaml

  # Override single settings through the environment
  FEDERATION_LOG_LEVEL=DEBUG federationd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	// Materialize the master operator up front so a broken database
	// surfaces at startup, not on the first authenticated request.
	if _, err := b.services.Operators.GetMasterOperator(ctx); err != nil {
		return fmt.Errorf("failed to initialize master operator: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.NewRouter(b.services, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("federation server listening",
			"addr", cfg.Server.Listen,
			"version", version.Version,
			"database", cfg.Database.Type,
			"cache", cfg.Cache.Enabled,
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
