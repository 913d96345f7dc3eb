// Package cmd wires the comet CLI: configuration loading, logger bootstrap
// and the browse/serve/version subcommands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/observability"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "comet",
	Short:   "Comet is an LLM-driven browsing agent.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// This runs before any command, setting up config and logging.
		if err := initializeConfig(); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			// Fall back to a minimal logger so the error itself is visible.
			_ = observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "comet"})
			return err
		}
		if err := observability.InitializeLogger(cfg.Logger); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		observability.GetLogger().Debug("Starting comet.", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command under a signal-aware context so SIGINT and
// SIGTERM cancel in-flight work cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initializeConfig registers defaults and reads the config file and COMET_*
// environment variables into the global viper instance.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("COMET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config file: %w", err)
		}
		// No config file; defaults and environment carry the day.
	}
	return nil
}

// loadConfig unmarshals and validates the current viper state. Subcommands
// call it again after binding their flags so flag overrides land in the
// config they run with.
func loadConfig() (*config.Config, error) {
	return config.NewConfigFromViper(viper.GetViper())
}
