package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cutroom-ai/cutroom/internal/api"
	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/service"
	"github.com/go-chi/chi/v5"
)

type SegmentService interface {
	Create(ctx context.Context, input service.CreateSegmentInput) (*domain.Segment, error)
	GetByID(ctx context.Context, id string) (*domain.Segment, error)
	ListSegments(ctx context.Context, input service.ListSegmentsInput) (*service.ListSegmentsOutput, error)
}

type SegmentHandler struct {
	svc SegmentService
}

func NewSegmentHandler(svc SegmentService) *SegmentHandler {
	return &SegmentHandler{svc: svc}
}

type CreateSegmentRequest struct {
	WorkflowID string `json:"workflow_id"`
	StartMS    int64  `json:"start_ms"`
	Transcript string `json:"transcript"`
}

type SegmentResponse struct {
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

type ListSegmentsResponse struct {
	Items   []*SegmentResponse `json:"items"`
	Cursor  string             `json:"cursor,omitempty"`
	HasMore bool               `json:"has_more"`
}

func segmentToResponse(s *domain.Segment) *SegmentResponse {
	return &SegmentResponse{
		ID:         s.ID,
		ProjectID:  s.ProjectID,
		WorkflowID: s.WorkflowID,
		StartMS:    s.StartMS,
		Transcript: s.Transcript,
		Status:     string(s.Status),
		Embedded:   s.Embedding != nil,
		CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *SegmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req CreateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WorkflowID == "" {
		api.Error(w, http.StatusBadRequest, "workflow_id is required")
		return
	}
	if req.Transcript == "" {
		api.Error(w, http.StatusBadRequest, "transcript is required")
		return
	}

	segment, err := h.svc.Create(r.Context(), service.CreateSegmentInput{
		ProjectID:  projectID,
		WorkflowID: req.WorkflowID,
		StartMS:    req.StartMS,
		Transcript: req.Transcript,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, segmentToResponse(segment))
}

func (h *SegmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "segmentID")

	segment, err := h.svc.GetByID(r.Context(), segmentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, segmentToResponse(segment))
}

func (h *SegmentHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	out, err := h.svc.ListSegments(r.Context(), service.ListSegmentsInput{
		ProjectID: projectID,
		Cursor:    r.URL.Query().Get("cursor"),
		Limit:     limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ListSegmentsResponse{
		Items:   make([]*SegmentResponse, 0, len(out.Items)),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	}
	for _, s := range out.Items {
		resp.Items = append(resp.Items, segmentToResponse(s))
	}

	api.Success(w, http.StatusOK, resp)
}
