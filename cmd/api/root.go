package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

var (
	debug   bool
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "med-assist",
	Short: "Medical assistant chat backend",
	Long: `med-assist answers health questions through an LLM, triages them by
severity, surfaces emergency numbers and records every exchange for the
admin dashboard.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command. Without a subcommand it serves HTTP.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

// loadConfig reads the dotenv file, if present, then the process
// environment. Real environment variables win over the file.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func setupLogger(ctx context.Context, cfg *config.Config) (context.Context, func()) {
	return log.NewContextWithLogger(ctx, cfg.Debug, !cfg.Production())
}
