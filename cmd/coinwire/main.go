package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coinwire/coinwire/config"
	"github.com/coinwire/coinwire/internal/server"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "coinwire",
		Short: "Crypto news question answering with retrieval-augmented generation",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background ingestion loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	var migDir, direction string
	var steps int
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			return server.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrateCmd.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source")
	migrateCmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrateCmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run a single ingestion cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return runIngestOnce(cmd.Context(), cfg)
		},
	}

	root.AddCommand(serve, migrateCmd, ingestCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Ingest.Enabled {
		go func() {
			if err := app.Scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				app.Logger.Printf("ingestion loop stopped: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- app.Server.Start(cfg.General.Listen) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Server.Shutdown(shutdownCtx)
}

func runIngestOnce(ctx context.Context, cfg *config.Config) error {
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Scheduler.RunOnce(ctx)
	stats := app.Scheduler.Stats()
	app.Logger.Printf("ingest cycle: %d stored, %d duplicates, %d source failures",
		stats.Stored, stats.Duplicates, stats.SourceFailures)
	return nil
}
