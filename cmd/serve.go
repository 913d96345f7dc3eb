package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/browser"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/observability"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/service"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/store"
)

// newServeCmd creates and configures the `serve` command: the long-running
// HTTP service exposing the agent.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			taskStore, err := newTaskStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := taskStore.Close(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("Task store close failed.", zap.Error(err))
				}
			}()

			cache, err := service.NewCache(ctx, cfg.Cache, logger)
			if err != nil {
				return fmt.Errorf("connecting result cache: %w", err)
			}
			if cache.Enabled() {
				defer func() { _ = cache.Close() }()
				logger.Info("Result cache enabled.", zap.Duration("ttl", cfg.Cache.TTL))
			}

			manager := browser.NewManager(ctx, cfg.Browser, logger)
			defer manager.Shutdown()

			runner := service.NewRunner(cfg, manager, logger)
			server := service.New(cfg, runner, taskStore, cache, Version, logger)
			return server.Start(ctx)
		},
	}

	serveCmd.Flags().String("addr", ":8000", "listen address")
	return serveCmd
}

// newTaskStore selects the task store backend: Postgres when a database URL
// is configured, the in-memory store otherwise.
func newTaskStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.TaskStore, error) {
	if cfg.Database.URL == "" {
		logger.Info("Using in-memory task store.")
		return store.NewMemory(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	pg, err := store.NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Using Postgres task store.")
	return pg, nil
}
