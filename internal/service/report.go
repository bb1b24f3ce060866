package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/telemetry"
)

// ReportStorage defines the object storage interface for report export.
type ReportStorage interface {
	PutObject(ctx context.Context, key string, contentType string, body []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// ReportService exports a project's analysis record as a JSON report to
// object storage and hands back a presigned download URL.
type ReportService struct {
	analyses AnalysisRepository
	projects ProjectRepository
	storage  ReportStorage
	nowFn    func() time.Time
}

// NewReportService creates a new ReportService instance
func NewReportService(analyses AnalysisRepository, projects ProjectRepository, storage ReportStorage) *ReportService {
	return &ReportService{
		analyses: analyses,
		projects: projects,
		storage:  storage,
		nowFn:    time.Now,
	}
}

// WithClock overrides the time source (for testing).
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.nowFn = now
	return s
}

// ReportOutput describes an exported report.
type ReportOutput struct {
	Key         string
	DownloadURL string
	GeneratedAt time.Time
}

type reportDocument struct {
	ProjectID       string                  `json:"project_id"`
	ProjectName     string                  `json:"project_name"`
	Status          domain.AnalysisStatus   `json:"status"`
	GroupsAnalyzed  int                     `json:"groups_analyzed"`
	TotalPairs      int                     `json:"total_pairs"`
	AnalyzedAt      *time.Time              `json:"analyzed_at,omitempty"`
	GeneratedAt     time.Time               `json:"generated_at"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// Export renders the current analysis record to JSON, uploads it and returns
// a presigned download URL. Projects without a completed analysis cannot be
// exported.
func (s *ReportService) Export(ctx context.Context, projectID string) (*ReportOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.Export", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "report",
	})
	defer span.End()

	if s.storage == nil {
		return nil, domain.ErrStorageUnavailable
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	record, err := s.analyses.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisNotFound) {
			return nil, fmt.Errorf("%w: project has no completed analysis", domain.ErrInvalidOperation)
		}
		return nil, err
	}
	if record.Status != domain.AnalysisStatusCompleted {
		return nil, fmt.Errorf("%w: analysis status is %s", domain.ErrInvalidOperation, record.Status)
	}

	now := s.nowFn().UTC()
	doc := reportDocument{
		ProjectID:       record.ProjectID,
		ProjectName:     project.Name,
		Status:          record.Status,
		GroupsAnalyzed:  record.GroupsAnalyzed,
		TotalPairs:      record.TotalPairs,
		AnalyzedAt:      record.AnalyzedAt,
		GeneratedAt:     now,
		Recommendations: record.Recommendations,
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	key := fmt.Sprintf("reports/%s/redundancy-%s.json", projectID, now.Format("20060102T150405Z"))
	if err := s.storage.PutObject(ctx, key, "application/json", body); err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	url, err := s.storage.GenerateDownloadURL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to presign report: %w", err)
	}

	return &ReportOutput{Key: key, DownloadURL: url, GeneratedAt: now}, nil
}
