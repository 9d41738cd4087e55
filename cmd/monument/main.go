// Monument server: a multi-agent grid simulator driven by a bulk-synchronous
// tick loop over namespaced persistent world state.
package main

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

	"github.com/usize/monument/pkg/admission"
	"github.com/usize/monument/pkg/api"
	"github.com/usize/monument/pkg/cleanup"
	"github.com/usize/monument/pkg/config"
	"github.com/usize/monument/pkg/coordinator"
	"github.com/usize/monument/pkg/monumenterr"
	"github.com/usize/monument/pkg/store"
	"github.com/usize/monument/pkg/version"
)

var configDir string

func main() {
	root := &cobra.Command{
		Use:   "monument",
		Short: "Monument grid simulator server",
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "directory containing .env")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and tick sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	var namespaceFile string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations to a single namespace file without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if namespaceFile == "" {
				return fmt.Errorf("--file is required")
			}
			_, err := store.Open(cmd.Context(), "migrate-check", namespaceFile)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			slog.Info("migrations applied", "file", namespaceFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&namespaceFile, "file", "", "path to the namespace .db file to migrate")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}

func runServe(ctx context.Context) error {
	slog.Info("starting monument", "version", version.Full())

	cfg, err := config.Load(config.DefaultEnvPath(configDir))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry, err := store.NewRegistry(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			slog.Error("error closing registry", "error", err)
		}
	}()

	if err := registry.DiscoverExisting(ctx); err != nil {
		return fmt.Errorf("discover existing namespaces: %w", err)
	}

	if cfg.NamespacesYAML != "" {
		if err := bootstrapNamespaces(ctx, registry, cfg.NamespacesYAML); err != nil {
			return fmt.Errorf("bootstrap namespaces: %w", err)
		}
	}

	coord := coordinator.New(registry)
	sweepInterval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("parse MONUMENT_SWEEP_INTERVAL: %w", err)
	}
	sweeper := coordinator.NewSweeper(coord, registry.Names, sweepInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	cleanupInterval, err := time.ParseDuration(cfg.CleanupInterval)
	if err != nil {
		return fmt.Errorf("parse MONUMENT_CLEANUP_INTERVAL: %w", err)
	}
	cleanupSvc := cleanup.NewService(registry, registry.Names, cfg.RetentionTicks, cfg.KeepChatMessages, cleanupInterval)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	admitter := admission.New(registry, coord)
	server := api.NewServer(registry, admitter, cfg.GinMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + cfg.HTTPPort)
	}()

	stop, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		return err
	case <-stop.Done():
		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	}
}

func bootstrapNamespaces(ctx context.Context, registry *store.Registry, path string) error {
	nsFile, err := config.LoadNamespacesFile(path)
	if err != nil {
		return err
	}
	for _, ns := range nsFile.Namespaces {
		s, err := registry.Create(ctx, ns.Name, ns.Width, ns.Height, ns.Goal, ns.Epoch)
		if err != nil {
			if errors.Is(err, monumenterr.ErrNamespaceExists) {
				continue
			}
			return fmt.Errorf("create namespace %s: %w", ns.Name, err)
		}
		for _, a := range ns.Actors {
			if _, err := s.RegisterActor(ctx, a.ID, a.X, a.Y, a.Facing, a.Scopes, a.CustomInstructions, a.LLMModel, a.Secret); err != nil {
				return fmt.Errorf("register actor %s in %s: %w", a.ID, ns.Name, err)
			}
		}
		slog.Info("namespace bootstrapped", "namespace", ns.Name, "actors", len(ns.Actors))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
