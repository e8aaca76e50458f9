package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alechenninger/provisioner/internal/config"
)

const defaultConfigPath = "./configs/provisioner.yaml"

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the provisioner server",
		Long: `Start the provisioner gRPC and HTTP servers.

The server will:
  - Serve the provisioning routes over HTTP
  - Serve grpc.health.v1 over gRPC (also exposed as /healthz)
  - Load configuration from file, environment variables, and command-line flags

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (PROVISIONER_*, nested keys joined by __)
  3. Configuration file`,
		RunE: runServe,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// resolveConfigPath picks the explicit path, then $PROVISIONER_CONFIG, then
// the default file when it exists
func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	if path := os.Getenv("PROVISIONER_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := resolveConfigPath()

	loader, err := config.NewLoaderWithFlags(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	provider := config.NewProvider(cfg)
	defer func() {
		if err := provider.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing stores: %v\n", err)
		}
	}()

	logger, err := provider.Logger()
	if err != nil {
		return err
	}

	srv, err := provider.Server(ctx)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := provider.Ping(ctx); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"grpc_port":      cfg.Server.GRPCPort,
		"http_port":      cfg.Server.HTTPPort,
		"ticket_store":   cfg.TicketStore.Type,
		"settings_store": cfg.SettingsStore.Type,
		"config":         configPath,
	}).Info("provisioner is running")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
