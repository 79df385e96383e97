package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/wayfinder"
	"github.com/aretw0/wayfinder/internal/cli"
	"github.com/aretw0/wayfinder/internal/config"
	"github.com/aretw0/wayfinder/internal/presentation/tui"
	"github.com/aretw0/wayfinder/pkg/adapters/terminal"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <guide-id>",
	Short: "Play a guide in the terminal",
	Long: `Runs a guide interactively, reading commands from stdin:
  n  next      p  previous   j <i>  jump       c <element>  click
  pause        resume        s  skip           q  quit (progress is kept)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		guideID := args[0]
		cfg := loadConfig(cmd)
		if ui, _ := cmd.Flags().GetString("ui"); ui != "" {
			cfg.UI = ui
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		restart, _ := cmd.Flags().GetBool("restart")

		if err := runPlay(cmd, cfg, guideID, quiet, restart); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("ui", "", "Element fixture file simulating the interface")
	playCmd.Flags().BoolP("quiet", "q", false, "Hide the banner and the prompt")
	playCmd.Flags().Bool("restart", false, "Forget previous progress on this guide first")
}

func runPlay(cmd *cobra.Command, cfg config.Config, guideID string, quiet, restart bool) error {
	sc := cli.NewSignalContext(context.Background())
	defer sc.Cancel()

	logger := getLogger(cfg)
	out := cmd.OutOrStdout()
	profile := termenv.NewOutput(out).EnvColorProfile()

	// 1. Persistence & Engine
	backend := getBackend(sc, cfg, logger)
	defer backend.Close()

	engine := getEngine(sc, cmd, cli.EngineOptions{
		Config:  cfg,
		Backend: backend,
		Visual:  terminal.New(out, terminal.WithProfile(profile)),
		Logger:  logger,
	})
	defer engine.Close(context.WithoutCancel(sc))

	if _, ok := engine.Guide(guideID); !ok {
		return fmt.Errorf("guide %q not found (loaded %d guides)", guideID, engine.Loaded)
	}
	if restart {
		if err := engine.ResetGuide(sc, guideID); err != nil {
			return err
		}
	}

	// 2. Presentation
	if !quiet {
		tui.PrintBanner(out, profile)
		cli.PrintSystemMessage(out, "Playing '%s' (store: %s)", guideID, backend.Kind)
	}

	// 3. Run until the guide ends or the user leaves
	runner := wayfinder.NewRunner(cmd.InOrStdin(), out)
	runner.Headless = quiet
	if engine.UI != nil {
		runner.Interact = engine.UI.Interact
	}

	err := runner.Run(sc, engine.Orchestrator, guideID)
	if errors.Is(err, context.Canceled) && sc.Signal() != nil {
		cli.PrintSystemMessage(out, "Interrupted (%v), progress saved.", sc.Signal())
		return nil
	}
	return err
}
