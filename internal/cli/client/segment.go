package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Segment represents a transcript segment from the API.
type Segment struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	WorkflowID string `json:"workflow_id"`
	StartMS    int64  `json:"start_ms"`
	Transcript string `json:"transcript"`
	Status     string `json:"status"`
	Embedded   bool   `json:"embedded"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// SegmentListResponse represents the segment list API response.
type SegmentListResponse struct {
	Items   []Segment `json:"items"`
	Cursor  string    `json:"cursor,omitempty"`
	HasMore bool      `json:"has_more"`
}

// SegmentCmd creates the segment command group.
func SegmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Manage transcript segments",
	}

	cmd.AddCommand(segmentAddCmd())
	cmd.AddCommand(segmentListCmd())

	return cmd
}

func segmentAddCmd() *cobra.Command {
	var (
		workflowID string
		startMS    int64
	)

	cmd := &cobra.Command{
		Use:   "add <project_id> <transcript>",
		Short: "Ingest a transcript segment",
		Long:  "Ingests a transcript segment and queues it for embedding. The segment becomes part of redundancy analysis once embedded.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{
				"workflow_id": workflowID,
				"start_ms":    startMS,
				"transcript":  args[1],
			}

			resp, err := api.Post(fmt.Sprintf("/projects/%s/segments", args[0]), body)
			if err != nil {
				return fmt.Errorf("failed to create segment: %w", err)
			}

			var segment Segment
			if err := json.Unmarshal(resp.Data, &segment); err != nil {
				return fmt.Errorf("failed to parse segment: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(segment, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Printf("Created segment %s (embedding queued)\n", segment.ID)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&workflowID, "workflow", "w", "", "Workflow (source take) ID")
	cmd.Flags().Int64Var(&startMS, "start-ms", 0, "Segment start offset in milliseconds")
	cmd.MarkFlagRequired("workflow")

	return cmd
}

func segmentListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list <project_id>",
		Short: "List segments of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/projects/%s/segments?limit=%d", args[0], limit)
			if cursor != "" {
				path += "&cursor=" + cursor
			}

			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("failed to list segments: %w", err)
			}

			var list SegmentListResponse
			if err := json.Unmarshal(resp.Data, &list); err != nil {
				return fmt.Errorf("failed to parse segments: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(list.Items) == 0 {
				fmt.Println("No segments found")
				return nil
			}

			for _, s := range list.Items {
				embedded := " "
				if s.Embedded {
					embedded = "*"
				}
				fmt.Printf("%s %s [%s] %dms: %s\n", embedded, s.ID, s.Status, s.StartMS, truncate(s.Transcript, 60))
			}

			if list.HasMore {
				fmt.Printf("\nMore results available, use --cursor %s\n", list.Cursor)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
