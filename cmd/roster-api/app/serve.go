package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	rosterapp "github.com/stacklok/studio-roster/internal/app"
	"github.com/stacklok/studio-roster/internal/config"
	"github.com/stacklok/studio-roster/internal/telemetry"
	"github.com/stacklok/studio-roster/internal/versions"
)

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	defaultAddress         = ":12000"

	flagAddress         = "address"
	flagConfig          = "config"
	flagEnvFile         = "env-file"
	flagRefreshInterval = "refresh-interval"

	// refreshIntervalKey is the configuration key overridden by --refresh-interval
	refreshIntervalKey = "refresh.interval"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the roster API server",
		Long: `Start the roster API server.

Studio credentials come from an optional YAML file (--config) and ROSTER_ prefixed
environment variables, which take precedence. A .env file is loaded first when present.
Required settings are the studio base URL, company ID and staff email:

  ROSTER_STUDIO_BASE_URL=https://studio.example.com/api
  ROSTER_STUDIO_COMPANY_ID=1234
  ROSTER_STUDIO_EMAIL=frontdesk@example.com

See examples/ directory for a sample configuration.`,
		RunE: runServe,
	}

	serveCmd.Flags().String(flagAddress, defaultAddress, "Address to listen on")
	serveCmd.Flags().String(flagConfig, "", "Path to configuration file (YAML format)")
	serveCmd.Flags().StringSlice(flagEnvFile, nil, "Dotenv files to load before reading the environment (default .env)")
	serveCmd.Flags().Duration(flagRefreshInterval, 0, "Override the refresh interval (e.g. 2m)")

	return serveCmd
}

// loadServeConfig resolves dotenv files, the YAML file, environment variables
// and flag overrides into a validated configuration
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	envFiles, err := cmd.Flags().GetStringSlice(flagEnvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", flagEnvFile, err)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	env := config.NewEnvironment()
	if flag := cmd.Flags().Lookup(flagRefreshInterval); flag != nil && flag.Changed {
		env.Set(refreshIntervalKey, flag.Value.String())
	}

	opts := []config.Option{config.WithEnvironment(env)}

	configPath, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", flagConfig, err)
	}
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	address, err := cmd.Flags().GetString(flagAddress)
	if err != nil {
		return fmt.Errorf("failed to get %s flag: %w", flagAddress, err)
	}

	slog.Info("Starting roster API server",
		"address", address,
		"version", versions.GetVersionInfo().Version,
		"studio", cfg.Studio.BaseURL,
		"timezone", cfg.Studio.Timezone,
		"refresh_interval", cfg.GetRefreshInterval().String())

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	app, err := rosterapp.NewRosterApp(ctx,
		rosterapp.WithConfig(cfg),
		rosterapp.WithAddress(address),
		rosterapp.WithMeterProvider(tel.MeterProvider()),
		rosterapp.WithTracerProvider(tel.TracerProvider()),
		rosterapp.WithMetricsHandler(tel.MetricsHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to build roster application: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = app.Stop(defaultGracefulTimeout)
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	if err := app.Stop(defaultGracefulTimeout); err != nil {
		return err
	}

	if err := <-serveErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
