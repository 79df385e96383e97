package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or clear the persisted onboarding state",
	Long:  `Reads the state store selected by --store (or the config file) without running a guide.`,
}

var stateLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the keys held by the store",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		ctx := context.Background()
		backend := getBackend(ctx, cfg, getLogger(cfg))
		defer backend.Close()

		keys, err := backend.Store.List(ctx)
		if err != nil {
			fmt.Printf("Error listing keys: %v\n", err)
			os.Exit(1)
		}

		if len(keys) == 0 {
			fmt.Println("No state found.")
			return
		}

		fmt.Println("Stored keys:")
		for _, k := range keys {
			fmt.Println("- " + k)
		}
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Print a stored value (the run state by default)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		key := cfg.Engine.StorageKey
		if len(args) > 0 {
			key = args[0]
		}
		ctx := context.Background()
		backend := getBackend(ctx, cfg, getLogger(cfg))
		defer backend.Close()

		data, err := backend.Store.Load(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Printf("No state stored under '%s'.\n", key)
			return
		}
		if err != nil {
			fmt.Printf("Error loading '%s': %v\n", key, err)
			os.Exit(1)
		}

		// Pretty print JSON; other values are printed raw.
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			fmt.Println(string(data))
			return
		}
		fmt.Println(out.String())
	},
}

var stateClearCmd = &cobra.Command{
	Use:   "clear [key...]",
	Short: "Remove stored values (run and execution state by default)",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		keys := args
		if len(keys) == 0 {
			keys = []string{cfg.Engine.StorageKey, cfg.Engine.TrackerStorageKey}
		}
		ctx := context.Background()
		backend := getBackend(ctx, cfg, getLogger(cfg))
		defer backend.Close()

		hasError := false
		for _, key := range keys {
			if err := backend.Store.Clear(ctx, key); err != nil {
				fmt.Printf("Error removing '%s': %v\n", key, err)
				hasError = true
			} else {
				fmt.Printf("Removed '%s'\n", key)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateLsCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)
}
