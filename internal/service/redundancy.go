package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/telemetry"
	"github.com/google/uuid"
)

// Defaults for the redundancy operations, overridable per request.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultMaxGroups           = 20
	DefaultMinConfidence       = 0.5
	DefaultApplyMinConfidence  = 0.7

	// highConfidenceFloor marks recommendations counted as high-confidence
	// in recommendation summaries.
	highConfidenceFloor = 0.8

	// defaultAsyncSegmentThreshold is the workload size above which an
	// analysis run is dispatched to the background worker.
	defaultAsyncSegmentThreshold = 50
)

// SegmentState is a segment's lifecycle status plus its owning workflow.
// Apply bookkeeping needs both for every candidate, including segments that
// already dropped out of the active listing.
type SegmentState struct {
	Status     domain.SegmentStatus
	WorkflowID string
}

// SegmentRepository defines segment persistence as needed by the redundancy
// engine.
type SegmentRepository interface {
	ListActiveByProject(ctx context.Context, projectID string) ([]*domain.Segment, error)
	GetStates(ctx context.Context, projectID string, segmentIDs []string) (map[string]SegmentState, error)
	// MarkRemoved flips the given segments to marked_for_removal within a
	// single transaction: all rows update or none do.
	MarkRemoved(ctx context.Context, projectID string, segmentIDs []string) error
}

// AnalysisRepository owns AnalysisRecord persistence with optimistic locking.
type AnalysisRepository interface {
	Get(ctx context.Context, projectID string) (*domain.AnalysisRecord, error)
	// ClaimRun claims the project's run slot and returns the version token
	// the run must commit against. A record with a prior completed result
	// keeps reporting completed while the new run is in flight; only the
	// first run of a project shows analyzing. Returns
	// domain.ErrAnalysisInProgress when another run holds the claim.
	ClaimRun(ctx context.Context, projectID, taskID string) (int64, error)
	// CompleteRun commits a finished run against the claimed version.
	// Returns domain.ErrStaleAnalysis when a concurrent run already advanced
	// the version; the caller discards its result in that case.
	CompleteRun(ctx context.Context, record *domain.AnalysisRecord) error
	// ReleaseRun reverts a failed claim, restoring the prior completed
	// record when one exists.
	ReleaseRun(ctx context.Context, projectID string, version int64) error
}

// AnalysisJobRepository enqueues asynchronous analysis runs.
type AnalysisJobRepository interface {
	Create(ctx context.Context, job *domain.AnalysisJob) error
}

// ProjectRepository defines project lookup as needed by the engine.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// RedundancyConfig carries the engine's construction-time configuration.
// Availability flags are explicit configuration checked at operation entry,
// not ambient global state.
type RedundancyConfig struct {
	Enabled               bool
	JudgeConfigured       bool
	CreatorProfile        string
	AsyncSegmentThreshold int

	// Defaults applied when a request omits the tuning parameters. Zero
	// values fall back to the package constants.
	DefaultSimilarityThreshold float64
	DefaultMaxGroups           int
}

// RedundancyService implements redundancy analysis, recommendation retrieval
// and recommendation application for a project's segments.
type RedundancyService struct {
	cfg         RedundancyConfig
	projects    ProjectRepository
	segments    SegmentRepository
	analyses    AnalysisRepository
	jobs        AnalysisJobRepository
	index       VectorIndex
	evaluator   *Evaluator
	synthesizer Synthesizer
	uuidGen     UUIDGenerator
	nowFn       func() time.Time
}

// NewRedundancyService creates a RedundancyService with the default
// quality-based synthesizer.
func NewRedundancyService(
	cfg RedundancyConfig,
	projects ProjectRepository,
	segments SegmentRepository,
	analyses AnalysisRepository,
	jobs AnalysisJobRepository,
	index VectorIndex,
	evaluator *Evaluator,
) *RedundancyService {
	if cfg.DefaultSimilarityThreshold == 0 {
		cfg.DefaultSimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.DefaultMaxGroups == 0 {
		cfg.DefaultMaxGroups = DefaultMaxGroups
	}
	return &RedundancyService{
		cfg:         cfg,
		projects:    projects,
		segments:    segments,
		analyses:    analyses,
		jobs:        jobs,
		index:       index,
		evaluator:   evaluator,
		synthesizer: NewQualitySynthesizer(),
		uuidGen:     &DefaultUUIDGenerator{},
		nowFn:       time.Now,
	}
}

// WithSynthesizer overrides the recommendation synthesizer (for the legacy
// first-occurrence variant and tests).
func (s *RedundancyService) WithSynthesizer(syn Synthesizer) *RedundancyService {
	s.synthesizer = syn
	return s
}

// WithUUIDGenerator overrides uuid generation (for testing).
func (s *RedundancyService) WithUUIDGenerator(gen UUIDGenerator) *RedundancyService {
	s.uuidGen = gen
	return s
}

// WithClock overrides the time source (for testing).
func (s *RedundancyService) WithClock(now func() time.Time) *RedundancyService {
	s.nowFn = now
	return s
}

// AnalyzeInput are the parameters of an analyze request. The Set flags
// distinguish an omitted tuning parameter from an explicit zero: omitted
// falls back to the configured default, explicit zero is a validation error.
type AnalyzeInput struct {
	ProjectID              string
	SimilarityThreshold    float64
	SimilarityThresholdSet bool
	MaxGroups              int
	MaxGroupsSet           bool
	ForceReanalyze         bool
}

// AnalyzeOutput reports the outcome of an analyze request. Status analyzing
// implies out-of-band completion via the worker.
type AnalyzeOutput struct {
	Status         domain.AnalysisStatus
	GroupsAnalyzed int
	TotalPairs     int
	AnalyzedAt     *time.Time
	TaskID         string
}

func (s *RedundancyService) checkGate() error {
	if !s.cfg.Enabled {
		return domain.ErrFeatureDisabled
	}
	if !s.cfg.JudgeConfigured {
		return domain.ErrJudgeUnavailable
	}
	return nil
}

// Analyze runs or schedules a redundancy analysis for the project. Projects
// already analyzed return cached unless ForceReanalyze is set. Small
// workloads run inline; larger ones are dispatched to the background worker
// and reported as analyzing.
func (s *RedundancyService) Analyze(ctx context.Context, input AnalyzeInput) (*AnalyzeOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RedundancyService.Analyze", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "analyze",
	})
	defer span.End()

	if err := s.checkGate(); err != nil {
		return nil, err
	}

	threshold := input.SimilarityThreshold
	if !input.SimilarityThresholdSet {
		threshold = s.cfg.DefaultSimilarityThreshold
	}
	if threshold <= 0 || threshold > 1 {
		return nil, domain.ErrInvalidSimilarityThreshold
	}

	maxGroups := input.MaxGroups
	if !input.MaxGroupsSet {
		maxGroups = s.cfg.DefaultMaxGroups
	}
	if maxGroups <= 0 {
		return nil, domain.ErrInvalidMaxGroups
	}

	if _, err := s.projects.GetByID(ctx, input.ProjectID); err != nil {
		return nil, err
	}

	record, err := s.analyses.Get(ctx, input.ProjectID)
	if err != nil && !errors.Is(err, domain.ErrAnalysisNotFound) {
		return nil, err
	}

	if record != nil {
		switch record.Status {
		case domain.AnalysisStatusAnalyzing:
			return &AnalyzeOutput{Status: domain.AnalysisStatusAnalyzing, TaskID: record.TaskID}, nil
		case domain.AnalysisStatusCompleted:
			if !input.ForceReanalyze {
				return &AnalyzeOutput{
					Status:         domain.AnalysisStatusCached,
					GroupsAnalyzed: record.GroupsAnalyzed,
					TotalPairs:     record.TotalPairs,
					AnalyzedAt:     record.AnalyzedAt,
				}, nil
			}
			// A superseding run is already in flight; the completed record
			// stays readable until that run commits.
			if record.ClaimedAt != nil {
				return &AnalyzeOutput{Status: domain.AnalysisStatusAnalyzing, TaskID: record.TaskID}, nil
			}
		}
	}

	segments, err := s.segments.ListActiveByProject(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}

	asyncThreshold := s.cfg.AsyncSegmentThreshold
	if asyncThreshold <= 0 {
		asyncThreshold = defaultAsyncSegmentThreshold
	}

	if len(segments) > asyncThreshold {
		return s.dispatchAsync(ctx, input.ProjectID, threshold, maxGroups)
	}

	version, err := s.analyses.ClaimRun(ctx, input.ProjectID, "")
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisInProgress) {
			return &AnalyzeOutput{Status: domain.AnalysisStatusAnalyzing}, nil
		}
		return nil, err
	}

	record, err = s.RunAnalysis(ctx, input.ProjectID, threshold, maxGroups, version)
	if err != nil {
		if releaseErr := s.analyses.ReleaseRun(ctx, input.ProjectID, version); releaseErr != nil {
			log.Printf("failed to release analysis claim for project %s: %v", input.ProjectID, releaseErr)
		}
		return nil, err
	}

	return &AnalyzeOutput{
		Status:         domain.AnalysisStatusCompleted,
		GroupsAnalyzed: record.GroupsAnalyzed,
		TotalPairs:     record.TotalPairs,
		AnalyzedAt:     record.AnalyzedAt,
	}, nil
}

func (s *RedundancyService) dispatchAsync(ctx context.Context, projectID string, threshold float64, maxGroups int) (*AnalyzeOutput, error) {
	taskID := s.uuidGen.NewString()

	version, err := s.analyses.ClaimRun(ctx, projectID, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisInProgress) {
			return &AnalyzeOutput{Status: domain.AnalysisStatusAnalyzing}, nil
		}
		return nil, err
	}

	job := &domain.AnalysisJob{
		ID:                  taskID,
		ProjectID:           projectID,
		SimilarityThreshold: threshold,
		MaxGroups:           maxGroups,
		Version:             version,
		Status:              domain.JobStatusPending,
		CreatedAt:           s.nowFn().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if releaseErr := s.analyses.ReleaseRun(ctx, projectID, version); releaseErr != nil {
			log.Printf("failed to release analysis claim for project %s: %v", projectID, releaseErr)
		}
		return nil, err
	}

	return &AnalyzeOutput{Status: domain.AnalysisStatusAnalyzing, TaskID: taskID}, nil
}

// RunAnalysis executes the full grouping/scoring/synthesis pipeline and
// commits the result against the claimed version token. The synchronous path
// and the background worker both call this identical function; only the
// caller differs. A domain.ErrStaleAnalysis commit outcome means a concurrent
// run superseded this one and the result was discarded.
func (s *RedundancyService) RunAnalysis(ctx context.Context, projectID string, threshold float64, maxGroups int, version int64) (*domain.AnalysisRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "RedundancyService.RunAnalysis", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "run_analysis",
	})
	defer span.End()

	segments, err := s.segments.ListActiveByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	groups, totalPairs, err := BuildGroups(ctx, s.index, segments, threshold, maxGroups)
	if err != nil {
		return nil, err
	}

	segmentsByID := make(map[string]*domain.Segment, len(segments))
	for _, seg := range segments {
		segmentsByID[seg.ID] = seg
	}

	evaluations := s.evaluator.EvaluateGroups(ctx, groups, segmentsByID)

	recommendations := make([]domain.Recommendation, len(groups))
	for i, group := range groups {
		recommendations[i] = s.synthesizer.Synthesize(group, evaluations[i])
	}

	now := s.nowFn().UTC()
	record := &domain.AnalysisRecord{
		ProjectID:       projectID,
		Status:          domain.AnalysisStatusCompleted,
		Version:         version,
		GroupsAnalyzed:  len(groups),
		TotalPairs:      totalPairs,
		Recommendations: recommendations,
		AnalyzedAt:      &now,
	}

	if err := s.analyses.CompleteRun(ctx, record); err != nil {
		if errors.Is(err, domain.ErrStaleAnalysis) {
			// A newer run committed first; silently drop this result.
			log.Printf("analysis run for project %s superseded at version %d, discarding", projectID, version)
			return nil, err
		}
		return nil, err
	}

	return record, nil
}

// RecommendationsInput are the parameters of a recommendations request.
type RecommendationsInput struct {
	ProjectID               string
	MinConfidence           float64
	MinConfidenceSet        bool
	IncludeDetailedAnalysis bool
}

// RecommendationsSummary aggregates the filtered recommendation set.
type RecommendationsSummary struct {
	TotalGroups      int
	FilteredGroups   int
	HighConfidence   int
	SegmentsToRemove int
}

// RecommendationsOutput is the recommendations view of the current analysis
// record.
type RecommendationsOutput struct {
	Status          domain.AnalysisStatus
	Recommendations []domain.Recommendation
	Summary         RecommendationsSummary
	AnalyzedAt      *time.Time
}

// GetRecommendations returns the current analysis record's recommendations
// filtered to the requested confidence floor.
func (s *RedundancyService) GetRecommendations(ctx context.Context, input RecommendationsInput) (*RecommendationsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RedundancyService.GetRecommendations", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "recommendations",
	})
	defer span.End()

	if err := s.checkGate(); err != nil {
		return nil, err
	}

	minConfidence := input.MinConfidence
	if !input.MinConfidenceSet {
		minConfidence = DefaultMinConfidence
	}
	if minConfidence < 0 || minConfidence > 1 {
		return nil, domain.ErrInvalidConfidence
	}

	if _, err := s.projects.GetByID(ctx, input.ProjectID); err != nil {
		return nil, err
	}

	record, err := s.analyses.Get(ctx, input.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisNotFound) {
			return &RecommendationsOutput{Status: domain.AnalysisStatusNotAnalyzed}, nil
		}
		return nil, err
	}

	out := &RecommendationsOutput{
		Status:     record.Status,
		AnalyzedAt: record.AnalyzedAt,
	}
	out.Summary.TotalGroups = len(record.Recommendations)

	for _, rec := range record.Recommendations {
		if rec.Confidence < minConfidence {
			continue
		}
		if !input.IncludeDetailedAnalysis {
			rec.Scores = nil
		}
		out.Recommendations = append(out.Recommendations, rec)
		out.Summary.FilteredGroups++
		out.Summary.SegmentsToRemove += len(rec.RemoveSegmentIDs)
		if rec.Confidence >= highConfidenceFloor {
			out.Summary.HighConfidence++
		}
	}

	return out, nil
}
