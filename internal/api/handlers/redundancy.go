package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cutroom-ai/cutroom/internal/api"
	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/service"
	"github.com/go-chi/chi/v5"
)

type RedundancyService interface {
	Analyze(ctx context.Context, input service.AnalyzeInput) (*service.AnalyzeOutput, error)
	GetRecommendations(ctx context.Context, input service.RecommendationsInput) (*service.RecommendationsOutput, error)
	Apply(ctx context.Context, input service.ApplyInput) (*service.ApplyOutput, error)
}

type ReportService interface {
	Export(ctx context.Context, projectID string) (*service.ReportOutput, error)
}

type RedundancyHandler struct {
	svc     RedundancyService
	reports ReportService
}

func NewRedundancyHandler(svc RedundancyService, reports ReportService) *RedundancyHandler {
	return &RedundancyHandler{svc: svc, reports: reports}
}

// AnalyzeRequest uses pointers for the tuning parameters so an omitted field
// and an explicit zero stay distinguishable: omitted falls back to the server
// default, zero is rejected as invalid.
type AnalyzeRequest struct {
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	MaxGroups           *int     `json:"max_groups"`
	ForceReanalyze      bool     `json:"force_reanalyze"`
}

type AnalyzeResponse struct {
	Status         string  `json:"status"`
	GroupsAnalyzed int     `json:"groups_analyzed"`
	TotalPairs     int     `json:"total_pairs"`
	AnalyzedAt     *string `json:"analyzed_at,omitempty"`
	TaskID         string  `json:"task_id,omitempty"`
}

type RecommendationsSummaryResponse struct {
	TotalGroups      int `json:"total_groups"`
	FilteredGroups   int `json:"filtered_groups"`
	HighConfidence   int `json:"high_confidence"`
	SegmentsToRemove int `json:"segments_to_remove"`
}

type RecommendationsResponse struct {
	Status          string                         `json:"status"`
	Recommendations []domain.Recommendation        `json:"recommendations"`
	Summary         RecommendationsSummaryResponse `json:"summary"`
	AnalyzedAt      *string                        `json:"analyzed_at,omitempty"`
}

type ApplyRequest struct {
	GroupIDs      []string `json:"group_ids"`
	MinConfidence *float64 `json:"min_confidence"`
	DryRun        bool     `json:"dry_run"`
}

type ApplySummaryResponse struct {
	RecommendationsApplied int `json:"recommendations_applied"`
	SegmentsMarkedRemove   int `json:"segments_marked_remove"`
	SegmentsAlreadyRemoved int `json:"segments_already_removed"`
	WorkflowsAffected      int `json:"workflows_affected"`
}

type ApplyResponse struct {
	Applied   bool                    `json:"applied"`
	DryRun    bool                    `json:"dry_run"`
	ChangeLog []domain.ChangeLogEntry `json:"change_log"`
	Summary   ApplySummaryResponse    `json:"summary"`
}

type ReportResponse struct {
	Key         string `json:"key"`
	DownloadURL string `json:"download_url"`
	GeneratedAt string `json:"generated_at"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func (h *RedundancyHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.AnalyzeInput{
		ProjectID:      projectID,
		ForceReanalyze: req.ForceReanalyze,
	}
	if req.SimilarityThreshold != nil {
		input.SimilarityThreshold = *req.SimilarityThreshold
		input.SimilarityThresholdSet = true
	}
	if req.MaxGroups != nil {
		input.MaxGroups = *req.MaxGroups
		input.MaxGroupsSet = true
	}

	out, err := h.svc.Analyze(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if out.Status == domain.AnalysisStatusAnalyzing {
		status = http.StatusAccepted
	}

	api.Success(w, status, AnalyzeResponse{
		Status:         string(out.Status),
		GroupsAnalyzed: out.GroupsAnalyzed,
		TotalPairs:     out.TotalPairs,
		AnalyzedAt:     formatTime(out.AnalyzedAt),
		TaskID:         out.TaskID,
	})
}

func (h *RedundancyHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	query := r.URL.Query()

	input := service.RecommendationsInput{
		ProjectID:               projectID,
		IncludeDetailedAnalysis: query.Get("include_detailed_analysis") == "true",
	}

	if raw := query.Get("min_confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "min_confidence must be a number")
			return
		}
		input.MinConfidence = parsed
		input.MinConfidenceSet = true
	}

	out, err := h.svc.GetRecommendations(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	recommendations := out.Recommendations
	if recommendations == nil {
		recommendations = []domain.Recommendation{}
	}

	api.Success(w, http.StatusOK, RecommendationsResponse{
		Status:          string(out.Status),
		Recommendations: recommendations,
		Summary: RecommendationsSummaryResponse{
			TotalGroups:      out.Summary.TotalGroups,
			FilteredGroups:   out.Summary.FilteredGroups,
			HighConfidence:   out.Summary.HighConfidence,
			SegmentsToRemove: out.Summary.SegmentsToRemove,
		},
		AnalyzedAt: formatTime(out.AnalyzedAt),
	})
}

func (h *RedundancyHandler) Apply(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.ApplyInput{
		ProjectID: projectID,
		GroupIDs:  req.GroupIDs,
		DryRun:    req.DryRun,
	}
	if req.MinConfidence != nil {
		input.MinConfidence = *req.MinConfidence
		input.MinConfidenceSet = true
	}

	out, err := h.svc.Apply(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	changeLog := out.ChangeLog
	if changeLog == nil {
		changeLog = []domain.ChangeLogEntry{}
	}

	api.Success(w, http.StatusOK, ApplyResponse{
		Applied:   out.Applied,
		DryRun:    out.DryRun,
		ChangeLog: changeLog,
		Summary: ApplySummaryResponse{
			RecommendationsApplied: out.Summary.RecommendationsApplied,
			SegmentsMarkedRemove:   out.Summary.SegmentsMarkedRemove,
			SegmentsAlreadyRemoved: out.Summary.SegmentsAlreadyRemoved,
			WorkflowsAffected:      out.Summary.WorkflowsAffected,
		},
	})
}

func (h *RedundancyHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	out, err := h.reports.Export(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, ReportResponse{
		Key:         out.Key,
		DownloadURL: out.DownloadURL,
		GeneratedAt: out.GeneratedAt.UTC().Format(time.RFC3339),
	})
}
