package domain

import (
	"fmt"
	"time"
)

// Project represents a multi-take media project
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NewProject creates a new Project instance
func NewProject(id, name string, createdAt time.Time) *Project {
	return &Project{
		ID:        id,
		Name:      name,
		CreatedAt: createdAt,
	}
}

// ValidateProject validates a Project instance
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}

	if p.ID == "" {
		return fmt.Errorf("project ID is required")
	}

	if p.Name == "" {
		return fmt.Errorf("project Name is required")
	}

	return nil
}

// Workflow represents one source take within a project
type Workflow struct {
	ID        string
	ProjectID string
	Name      string
	CreatedAt time.Time
}

// NewWorkflow creates a new Workflow instance
func NewWorkflow(id, projectID, name string, createdAt time.Time) *Workflow {
	return &Workflow{
		ID:        id,
		ProjectID: projectID,
		Name:      name,
		CreatedAt: createdAt,
	}
}

// ValidateWorkflow validates a Workflow instance
func ValidateWorkflow(w *Workflow) error {
	if w == nil {
		return fmt.Errorf("workflow cannot be nil")
	}

	if w.ID == "" {
		return fmt.Errorf("workflow ID is required")
	}

	if w.ProjectID == "" {
		return fmt.Errorf("workflow ProjectID is required")
	}

	return nil
}
