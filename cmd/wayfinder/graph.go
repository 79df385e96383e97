package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/wayfinder/internal/cli"
	"github.com/aretw0/wayfinder/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <guide-id>",
	Short: "Export a guide as a Mermaid flowchart",
	Long: `Outputs a Mermaid diagram (graph TD) of the guide's steps. With --progress the
steps already walked and the current step are highlighted from the persisted state.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		guideID := args[0]
		cfg := loadConfig(cmd)
		progress, _ := cmd.Flags().GetBool("progress")
		logger := getLogger(cfg)
		ctx := context.Background()

		opts := cli.EngineOptions{Config: cfg, Logger: logger}
		if progress {
			backend := getBackend(ctx, cfg, logger)
			defer backend.Close()
			opts.Backend = backend
		}
		engine := getEngine(ctx, cmd, opts)
		defer engine.Close(ctx)

		g, ok := engine.Guide(guideID)
		if !ok {
			fmt.Printf("Error: guide %q not found\n", guideID)
			os.Exit(1)
		}

		var overlay *graph.Overlay
		if progress {
			overlay = &graph.Overlay{}
			st := engine.State()
			switch {
			case st.CompletedGuides.Has(guideID):
				for _, s := range g.Steps {
					overlay.VisitedSteps = append(overlay.VisitedSteps, s.ID)
				}
			case st.IsActive && st.CurrentGuideID == guideID && st.CurrentStepIndex >= 0 && st.CurrentStepIndex < len(g.Steps):
				for _, s := range g.Steps[:st.CurrentStepIndex] {
					overlay.VisitedSteps = append(overlay.VisitedSteps, s.ID)
				}
				overlay.CurrentStep = g.Steps[st.CurrentStepIndex].ID
			}
		}

		fmt.Print(graph.GenerateMermaid(g, overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("progress", false, "Highlight progress from the state store")
}
