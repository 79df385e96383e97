package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/wayfinder/internal/cli"
	"github.com/aretw0/wayfinder/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wayfinder",
	Short: "Wayfinder plays guided onboarding tours",
	Long: `Wayfinder loads guide definitions, walks a user through them step by step
and remembers which guides were completed or skipped.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands). Set flags override the config file.
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().String("store", "", "State store: memory, file:<dir>, sqlite:<path> or redis://host:port/db")
	rootCmd.PersistentFlags().StringSlice("guides", nil, "Guide files or directories")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every engine event to stderr")
}

// loadConfig reads the configuration file and applies the persistent flags.
func loadConfig(cmd *cobra.Command) config.Config {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cmd.Flags().Changed("store") {
		cfg.Store, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("guides") {
		cfg.Guides, _ = cmd.Flags().GetStringSlice("guides")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	return cfg
}

// getLogger creates the logger on Stderr so Stdout carries only the tour.
func getLogger(cfg config.Config) *slog.Logger {
	logger, err := cli.NewLogger(os.Stderr, cfg.Log)
	if err != nil {
		fmt.Printf("Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func getBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) *cli.Backend {
	backend, err := cli.OpenBackend(ctx, cfg.Store, cfg.Security, logger)
	if err != nil {
		fmt.Printf("Error opening store: %v\n", err)
		os.Exit(1)
	}
	return backend
}

func getEngine(ctx context.Context, cmd *cobra.Command, opts cli.EngineOptions) *cli.Engine {
	opts.Debug, _ = cmd.Flags().GetBool("debug")
	engine, err := cli.NewEngine(ctx, opts)
	if err != nil {
		fmt.Printf("Error initializing wayfinder: %v\n", err)
		os.Exit(1)
	}
	return engine
}
