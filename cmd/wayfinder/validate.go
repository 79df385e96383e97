package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/wayfinder/pkg/adapters/guidefile"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path...]",
	Short: "Check guide files for consistency",
	Long: `Parses every guide file under the given paths (or the configured guides)
and reports unknown fields, missing ids, duplicate steps and invalid conditions.`,
	Run: func(cmd *cobra.Command, args []string) {
		paths := args
		if len(paths) == 0 {
			paths = loadConfig(cmd).Guides
		}
		if len(paths) == 0 {
			paths = []string{"guides"}
		}

		guides, err := runValidate(cmd.Context(), paths)
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		for _, g := range guides {
			fmt.Printf("- %s: %s (%d steps)\n", g.ID, g.Name, len(g.Steps))
		}
		fmt.Println("Guides are valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(ctx context.Context, paths []string) ([]domain.Guide, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Parse and validate every file
	guides, err := guidefile.New(paths...).LoadGuides(ctx)
	if err != nil {
		return nil, err
	}

	// 2. An empty set is almost always a wrong path
	if len(guides) == 0 {
		return nil, errors.New("no guide files found")
	}
	return guides, nil
}
