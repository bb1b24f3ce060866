package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Project represents a project from the API.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// Workflow represents a workflow from the API.
type Workflow struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ProjectCmd creates the project command group.
func ProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and workflows",
	}

	cmd.AddCommand(projectCreateCmd())
	cmd.AddCommand(projectListCmd())
	cmd.AddCommand(projectGetCmd())
	cmd.AddCommand(workflowAddCmd())
	cmd.AddCommand(workflowListCmd())

	return cmd
}

func projectCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/projects", map[string]string{"name": args[0]})
			if err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			var project Project
			if err := json.Unmarshal(resp.Data, &project); err != nil {
				return fmt.Errorf("failed to parse project: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(project, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Printf("Created project '%s' (id: %s)\n", project.Name, project.ID)
			}

			return nil
		},
	}
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/projects")
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			var projects []Project
			if err := json.Unmarshal(resp.Data, &projects); err != nil {
				return fmt.Errorf("failed to parse projects: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(projects, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(projects) == 0 {
				fmt.Println("No projects found")
				return nil
			}

			for _, p := range projects {
				fmt.Printf("%s  %s  (created %s)\n", p.ID, p.Name, p.CreatedAt)
			}

			return nil
		},
	}
}

func projectGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <project_id>",
		Short: "Get a project by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(fmt.Sprintf("/projects/%s", args[0]))
			if err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}

			var project Project
			if err := json.Unmarshal(resp.Data, &project); err != nil {
				return fmt.Errorf("failed to parse project: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(project, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Printf("ID: %s\n", project.ID)
				fmt.Printf("Name: %s\n", project.Name)
				fmt.Printf("Created: %s\n", project.CreatedAt)
			}

			return nil
		},
	}
}

func workflowAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workflow-add <project_id> <name>",
		Short: "Add a workflow (source take) to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post(fmt.Sprintf("/projects/%s/workflows", args[0]), map[string]string{"name": args[1]})
			if err != nil {
				return fmt.Errorf("failed to create workflow: %w", err)
			}

			var workflow Workflow
			if err := json.Unmarshal(resp.Data, &workflow); err != nil {
				return fmt.Errorf("failed to parse workflow: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(workflow, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Printf("Created workflow '%s' (id: %s)\n", workflow.Name, workflow.ID)
			}

			return nil
		},
	}
}

func workflowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows <project_id>",
		Short: "List workflows of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(fmt.Sprintf("/projects/%s/workflows", args[0]))
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}

			var workflows []Workflow
			if err := json.Unmarshal(resp.Data, &workflows); err != nil {
				return fmt.Errorf("failed to parse workflows: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(workflows, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(workflows) == 0 {
				fmt.Println("No workflows found")
				return nil
			}

			for _, w := range workflows {
				fmt.Printf("%s  %s\n", w.ID, w.Name)
			}

			return nil
		},
	}
}
