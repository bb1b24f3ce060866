package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AnalyzeResult represents the analyze API response.
type AnalyzeResult struct {
	Status         string `json:"status"`
	GroupsAnalyzed int    `json:"groups_analyzed"`
	TotalPairs     int    `json:"total_pairs"`
	AnalyzedAt     string `json:"analyzed_at,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
}

// Recommendation represents one redundancy recommendation from the API.
type Recommendation struct {
	GroupID          string   `json:"group_id"`
	KeepSegmentID    string   `json:"keep_segment_id"`
	RemoveSegmentIDs []string `json:"remove_segment_ids"`
	Confidence       float64  `json:"confidence"`
	PrimaryReason    string   `json:"primary_reason"`
}

// RecommendationsResult represents the recommendations API response.
type RecommendationsResult struct {
	Status          string           `json:"status"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         struct {
		TotalGroups      int `json:"total_groups"`
		FilteredGroups   int `json:"filtered_groups"`
		HighConfidence   int `json:"high_confidence"`
		SegmentsToRemove int `json:"segments_to_remove"`
	} `json:"summary"`
	AnalyzedAt string `json:"analyzed_at,omitempty"`
}

// ApplyResult represents the apply API response.
type ApplyResult struct {
	Applied   bool `json:"applied"`
	DryRun    bool `json:"dry_run"`
	ChangeLog []struct {
		WorkflowID     string `json:"workflow_id"`
		SegmentID      string `json:"segment_id"`
		Reason         string `json:"reason"`
		AlreadyRemoved bool   `json:"already_removed,omitempty"`
	} `json:"change_log"`
	Summary struct {
		RecommendationsApplied int `json:"recommendations_applied"`
		SegmentsMarkedRemove   int `json:"segments_marked_remove"`
		SegmentsAlreadyRemoved int `json:"segments_already_removed"`
		WorkflowsAffected      int `json:"workflows_affected"`
	} `json:"summary"`
}

// ReportResult represents the report export API response.
type ReportResult struct {
	Key         string `json:"key"`
	DownloadURL string `json:"download_url"`
	GeneratedAt string `json:"generated_at"`
}

// AnalyzeCmd creates the analyze command.
func AnalyzeCmd() *cobra.Command {
	var (
		threshold float64
		maxGroups int
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <project_id>",
		Short: "Run redundancy analysis on a project",
		Long:  "Groups similar transcript segments, scores them with the quality judge and stores keep/remove recommendations.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{
				"force_reanalyze": force,
			}
			if cmd.Flags().Changed("threshold") {
				body["similarity_threshold"] = threshold
			}
			if cmd.Flags().Changed("max-groups") {
				body["max_groups"] = maxGroups
			}

			resp, err := api.Post(fmt.Sprintf("/projects/%s/redundancy/analyze", args[0]), body)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			var result AnalyzeResult
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse analysis result: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			switch result.Status {
			case "analyzing":
				fmt.Printf("Analysis running in background (task: %s)\n", result.TaskID)
			case "cached":
				fmt.Printf("Using cached analysis from %s (%d groups, %d pairs)\n", result.AnalyzedAt, result.GroupsAnalyzed, result.TotalPairs)
			default:
				fmt.Printf("Analysis complete: %d groups, %d similar pairs\n", result.GroupsAnalyzed, result.TotalPairs)
			}

			return nil
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0.85, "Similarity threshold in (0,1]")
	cmd.Flags().IntVar(&maxGroups, "max-groups", 20, "Maximum number of groups to analyze")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-analyze even if a completed analysis exists")

	return cmd
}

// RecommendationsCmd creates the recommendations command.
func RecommendationsCmd() *cobra.Command {
	var (
		minConfidence float64
		detailed      bool
	)

	cmd := &cobra.Command{
		Use:     "recommendations <project_id>",
		Short:   "Show redundancy recommendations for a project",
		Aliases: []string{"recs"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/projects/%s/redundancy/recommendations", args[0])
			sep := "?"
			if cmd.Flags().Changed("min-confidence") {
				path += fmt.Sprintf("%smin_confidence=%g", sep, minConfidence)
				sep = "&"
			}
			if detailed {
				path += sep + "include_detailed_analysis=true"
			}

			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("failed to get recommendations: %w", err)
			}

			var result RecommendationsResult
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse recommendations: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if result.Status == "not_analyzed" {
				fmt.Println("Project has not been analyzed yet, run 'analyze' first")
				return nil
			}

			fmt.Printf("Status: %s (analyzed %s)\n", result.Status, result.AnalyzedAt)
			fmt.Printf("Groups: %d total, %d above confidence floor, %d high confidence\n",
				result.Summary.TotalGroups, result.Summary.FilteredGroups, result.Summary.HighConfidence)
			fmt.Printf("Segments to remove: %d\n\n", result.Summary.SegmentsToRemove)

			for _, rec := range result.Recommendations {
				fmt.Printf("Group %s (confidence %.2f)\n", rec.GroupID, rec.Confidence)
				fmt.Printf("  keep:   %s\n", rec.KeepSegmentID)
				for _, id := range rec.RemoveSegmentIDs {
					fmt.Printf("  remove: %s\n", id)
				}
				if rec.PrimaryReason != "" {
					fmt.Printf("  reason: %s\n", rec.PrimaryReason)
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.5, "Confidence floor for returned recommendations")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Include per-segment quality scores")

	return cmd
}

// ApplyCmd creates the apply command.
func ApplyCmd() *cobra.Command {
	var (
		groupIDs      []string
		minConfidence float64
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "apply <project_id>",
		Short: "Apply redundancy recommendations",
		Long:  "Marks the removal candidates of recommendations at or above the confidence floor. Use --dry-run to preview.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{
				"dry_run": dryRun,
			}
			if len(groupIDs) > 0 {
				body["group_ids"] = groupIDs
			}
			if cmd.Flags().Changed("min-confidence") {
				body["min_confidence"] = minConfidence
			}

			resp, err := api.Post(fmt.Sprintf("/projects/%s/redundancy/apply", args[0]), body)
			if err != nil {
				return fmt.Errorf("apply failed: %w", err)
			}

			var result ApplyResult
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse apply result: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if result.DryRun {
				fmt.Println("Dry run, no segments were changed")
			}
			fmt.Printf("Applied %d recommendations: %d segments marked, %d already removed, %d workflows affected\n",
				result.Summary.RecommendationsApplied,
				result.Summary.SegmentsMarkedRemove,
				result.Summary.SegmentsAlreadyRemoved,
				result.Summary.WorkflowsAffected)

			for _, entry := range result.ChangeLog {
				marker := "-"
				if entry.AlreadyRemoved {
					marker = "="
				}
				fmt.Printf("  %s %s (workflow %s): %s\n", marker, entry.SegmentID, entry.WorkflowID, entry.Reason)
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&groupIDs, "group", "g", nil, "Apply only these group IDs (repeatable)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.7, "Confidence floor for applied recommendations")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without committing them")

	return cmd
}

// ReportCmd creates the report command.
func ReportCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "report <project_id>",
		Short: "Export an analysis report",
		Long:  "Exports the current analysis record as a JSON report to object storage and prints the download URL.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post(fmt.Sprintf("/projects/%s/redundancy/report", args[0]), nil)
			if err != nil {
				return fmt.Errorf("report export failed: %w", err)
			}

			var result ReportResult
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse report result: %w", err)
			}

			if outputPath != "" {
				if err := api.DownloadFile(result.DownloadURL, outputPath); err != nil {
					return err
				}
				fmt.Printf("Report saved to %s\n", outputPath)
				return nil
			}

			if outputJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Printf("Report exported: %s\n", result.Key)
				fmt.Printf("Download: %s\n", result.DownloadURL)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Download the report to this path")

	return cmd
}
