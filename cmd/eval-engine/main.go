// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the eval-engine CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/eval-engine/internal/config"
	"github.com/pdiddy/eval-engine/internal/logging"
	"github.com/pdiddy/eval-engine/internal/secrets"
	"github.com/pdiddy/eval-engine/internal/telemetry"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// settings holds the viper instance populated by initConfig.
	settings *viper.Viper

	// configErr is set when an explicitly named config file cannot be read.
	configErr error

	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	engineCfg types.EngineConfig
	logger    = zap.NewNop()
	metrics   = telemetry.New()
)

var rootCmd = &cobra.Command{
	Use:   "eval-engine",
	Short: "Score extracted paper metadata against reference values",
	Long: `eval-engine scores machine-extracted research metadata against reference
values and blends the result with human ratings.

score evaluates a single field, assess runs one evaluator's pass over a
paper and optionally archives it, and aggregate rolls archived passes up
into cross-paper statistics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		s, err := secrets.Load(secrets.DefaultDir, os.Stderr)
		if err != nil {
			return err
		}
		loadedSecrets = s

		cfg, err := config.FromViper(settings)
		if err != nil {
			return err
		}
		engineCfg = cfg

		l, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		if used := settings.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()
		out, _ := cmd.Flags().GetString("metrics-out")
		if out == "" {
			return nil
		}
		if err := prometheus.WriteToTextfile(out, metrics.Registry); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./eval-engine.yaml or ~/.config/eval-engine/eval-engine.yaml)")
	rootCmd.PersistentFlags().String("metrics-out", "", "write Prometheus counters to this file on exit")
}

func initConfig() {
	settings = config.New()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		settings.SetConfigFile(cfgFile)
	} else {
		settings.SetConfigName("eval-engine")
		settings.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			settings.AddConfigPath(filepath.Join(home, ".config", "eval-engine"))
		}
	}

	if err := settings.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config: %w", err)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
