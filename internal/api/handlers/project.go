package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cutroom-ai/cutroom/internal/api"
	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ProjectService interface {
	Create(ctx context.Context, name string) (*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]*domain.Project, error)
	CreateWorkflow(ctx context.Context, projectID, name string) (*domain.Workflow, error)
	ListWorkflows(ctx context.Context, projectID string) ([]*domain.Workflow, error)
}

type ProjectHandler struct {
	svc ProjectService
}

func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type CreateWorkflowRequest struct {
	Name string `json:"name"`
}

type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type WorkflowResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func projectToResponse(p *domain.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func workflowToResponse(w *domain.Workflow) *WorkflowResponse {
	return &WorkflowResponse{
		ID:        w.ID,
		ProjectID: w.ProjectID,
		Name:      w.Name,
		CreatedAt: w.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	project, err := h.svc.Create(r.Context(), req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, projectToResponse(project))
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	project, err := h.svc.GetByID(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, projectToResponse(project))
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, projectToResponse(p))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *ProjectHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	workflow, err := h.svc.CreateWorkflow(r.Context(), projectID, req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, workflowToResponse(workflow))
}

func (h *ProjectHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	workflows, err := h.svc.ListWorkflows(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*WorkflowResponse, 0, len(workflows))
	for _, wf := range workflows {
		resp = append(resp, workflowToResponse(wf))
	}

	api.Success(w, http.StatusOK, resp)
}
