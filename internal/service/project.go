package service

import (
	"context"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
)

// ProjectWriteRepository defines the repository interface for project
// management.
type ProjectWriteRepository interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]*domain.Project, error)
	CreateWorkflow(ctx context.Context, w *domain.Workflow) error
	ListWorkflows(ctx context.Context, projectID string) ([]*domain.Workflow, error)
}

// ProjectService handles business logic for projects and their workflows.
type ProjectService struct {
	repo    ProjectWriteRepository
	uuidGen UUIDGenerator
}

// NewProjectService creates a new ProjectService instance
func NewProjectService(repo ProjectWriteRepository) *ProjectService {
	return &ProjectService{repo: repo, uuidGen: &DefaultUUIDGenerator{}}
}

// NewProjectServiceWithUUIDGen creates a new ProjectService with custom UUID generator (for testing)
func NewProjectServiceWithUUIDGen(repo ProjectWriteRepository, uuidGen UUIDGenerator) *ProjectService {
	return &ProjectService{repo: repo, uuidGen: uuidGen}
}

// Create creates a new project
func (s *ProjectService) Create(ctx context.Context, name string) (*domain.Project, error) {
	project := &domain.Project{
		ID:        s.uuidGen.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateProject(project); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// GetByID retrieves a project by ID
func (s *ProjectService) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves all projects
func (s *ProjectService) List(ctx context.Context) ([]*domain.Project, error) {
	return s.repo.List(ctx)
}

// CreateWorkflow creates a workflow under a project
func (s *ProjectService) CreateWorkflow(ctx context.Context, projectID, name string) (*domain.Workflow, error) {
	if _, err := s.repo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	workflow := &domain.Workflow{
		ID:        s.uuidGen.NewString(),
		ProjectID: projectID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateWorkflow(workflow); err != nil {
		return nil, err
	}

	if err := s.repo.CreateWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// ListWorkflows retrieves all workflows for a project
func (s *ProjectService) ListWorkflows(ctx context.Context, projectID string) ([]*domain.Workflow, error) {
	if _, err := s.repo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListWorkflows(ctx, projectID)
}
