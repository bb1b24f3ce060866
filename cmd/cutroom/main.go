package main

import (
	"fmt"
	"os"

	"github.com/cutroom-ai/cutroom/internal/cli"
	"github.com/cutroom-ai/cutroom/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cutroom",
		Short: "Cutroom CLI - Redundancy analysis for multi-take media projects",
		Long: `Cutroom CLI provides commands to ingest transcript segments and manage
redundancy analysis for multi-take media projects.

Environment variables:
  CUTROOM_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ProjectCmd())
	rootCmd.AddCommand(client.SegmentCmd())
	rootCmd.AddCommand(client.AnalyzeCmd())
	rootCmd.AddCommand(client.RecommendationsCmd())
	rootCmd.AddCommand(client.ApplyCmd())
	rootCmd.AddCommand(client.ReportCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
