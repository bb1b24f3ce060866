package service

import (
	"context"
	"testing"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func enabledConfig() RedundancyConfig {
	return RedundancyConfig{
		Enabled:               true,
		JudgeConfigured:       true,
		AsyncSegmentThreshold: 50,
	}
}

type redundancyFixture struct {
	projects *MockProjectRepository
	segments *MockSegmentRepository
	analyses *MockAnalysisRepository
	jobs     *MockAnalysisJobRepository
	index    *MockVectorIndex
	judge    *MockQualityJudge
	svc      *RedundancyService
}

func newRedundancyFixture(cfg RedundancyConfig) *redundancyFixture {
	f := &redundancyFixture{
		projects: &MockProjectRepository{},
		segments: &MockSegmentRepository{},
		analyses: &MockAnalysisRepository{},
		jobs:     &MockAnalysisJobRepository{},
		index:    &MockVectorIndex{},
		judge:    &MockQualityJudge{},
	}
	evaluator := NewEvaluator(f.judge, cfg.CreatorProfile)
	evaluator.initialBackoff = time.Millisecond
	f.svc = NewRedundancyService(cfg, f.projects, f.segments, f.analyses, f.jobs, f.index, evaluator)
	return f
}

func (f *redundancyFixture) expectProject(id string) {
	f.projects.On("GetByID", mock.Anything, id).Return(&domain.Project{ID: id, Name: "demo"}, nil)
}

func TestAnalyze_FeatureDisabled(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	f := newRedundancyFixture(cfg)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1"})

	assert.ErrorIs(t, err, domain.ErrFeatureDisabled)
}

func TestAnalyze_JudgeUnavailable(t *testing.T) {
	cfg := enabledConfig()
	cfg.JudgeConfigured = false
	f := newRedundancyFixture(cfg)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1"})

	assert.ErrorIs(t, err, domain.ErrJudgeUnavailable)
}

func TestAnalyze_InvalidParams(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ProjectID: "project-1", SimilarityThreshold: 1.5, SimilarityThresholdSet: true,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSimilarityThreshold)

	_, err = f.svc.Analyze(context.Background(), AnalyzeInput{
		ProjectID: "project-1", MaxGroups: -1, MaxGroupsSet: true,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMaxGroups)
}

func TestAnalyze_ExplicitZeroParamsRejected(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())

	// An explicit zero is a caller mistake, not a request for the default.
	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ProjectID: "project-1", SimilarityThreshold: 0, SimilarityThresholdSet: true,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSimilarityThreshold)

	_, err = f.svc.Analyze(context.Background(), AnalyzeInput{
		ProjectID: "project-1", MaxGroups: 0, MaxGroupsSet: true,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMaxGroups)
}

func TestAnalyze_ProjectNotFound(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.projects.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrProjectNotFound)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "missing"})

	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestAnalyze_ReturnsCachedWithoutForce(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	analyzedAt := time.Now().UTC()
	f.analyses.On("Get", mock.Anything, "project-1").Return(&domain.AnalysisRecord{
		ProjectID:      "project-1",
		Status:         domain.AnalysisStatusCompleted,
		GroupsAnalyzed: 3,
		TotalPairs:     7,
		AnalyzedAt:     &analyzedAt,
	}, nil)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1"})

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusCached, out.Status)
	assert.Equal(t, 3, out.GroupsAnalyzed)
	assert.Equal(t, 7, out.TotalPairs)
	f.analyses.AssertNotCalled(t, "ClaimRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_InProgressShortCircuits(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	f.analyses.On("Get", mock.Anything, "project-1").Return(&domain.AnalysisRecord{
		ProjectID: "project-1",
		Status:    domain.AnalysisStatusAnalyzing,
		TaskID:    "task-9",
	}, nil)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1"})

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusAnalyzing, out.Status)
	assert.Equal(t, "task-9", out.TaskID)
}

func TestAnalyze_SyncRunCompletes(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	f.analyses.On("Get", mock.Anything, "project-1").Return(nil, domain.ErrAnalysisNotFound)

	segments := []*domain.Segment{
		{ID: "seg-a", ProjectID: "project-1", Transcript: "intro take one", Status: domain.SegmentStatusActive},
		{ID: "seg-b", ProjectID: "project-1", Transcript: "intro take two", Status: domain.SegmentStatusActive},
	}
	f.segments.On("ListActiveByProject", mock.Anything, "project-1").Return(segments, nil)

	f.analyses.On("ClaimRun", mock.Anything, "project-1", "").Return(int64(1), nil)
	f.index.On("FindSimilar", mock.Anything, "project-1", "seg-a").
		Return([]Neighbor{{SegmentID: "seg-b", Similarity: 0.91}}, nil)
	f.index.On("FindSimilar", mock.Anything, "project-1", "seg-b").
		Return([]Neighbor{{SegmentID: "seg-a", Similarity: 0.91}}, nil)
	f.judge.On("JudgeGroup", mock.Anything, "", mock.Anything).Return(&JudgeVerdict{
		Scores: []JudgeScore{
			{SegmentID: "seg-a", Delivery: 0.9, Clarity: 0.9, Completeness: 0.9, Overall: 0.9},
			{SegmentID: "seg-b", Delivery: 0.6, Clarity: 0.6, Completeness: 0.6, Overall: 0.6},
		},
		Certainty: 1.0,
	}, nil)

	var committed *domain.AnalysisRecord
	f.analyses.On("CompleteRun", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		committed = args.Get(1).(*domain.AnalysisRecord)
	}).Return(nil)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1"})

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusCompleted, out.Status)
	assert.Equal(t, 1, out.GroupsAnalyzed)
	assert.Equal(t, 1, out.TotalPairs)

	require.NotNil(t, committed)
	assert.Equal(t, int64(1), committed.Version)
	require.Len(t, committed.Recommendations, 1)
	rec := committed.Recommendations[0]
	assert.Equal(t, "seg-a", rec.KeepSegmentID)
	assert.Equal(t, []string{"seg-b"}, rec.RemoveSegmentIDs)
	assert.Greater(t, rec.Confidence, 0.9)
}

func TestAnalyze_ForceReanalyzeClaimsNewRun(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	analyzedAt := time.Now().UTC()
	f.analyses.On("Get", mock.Anything, "project-1").Return(&domain.AnalysisRecord{
		ProjectID:  "project-1",
		Status:     domain.AnalysisStatusCompleted,
		Version:    4,
		AnalyzedAt: &analyzedAt,
	}, nil)
	f.segments.On("ListActiveByProject", mock.Anything, "project-1").
		Return([]*domain.Segment{}, nil)
	f.analyses.On("ClaimRun", mock.Anything, "project-1", "").Return(int64(5), nil)
	f.analyses.On("CompleteRun", mock.Anything, mock.Anything).Return(nil)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1", ForceReanalyze: true})

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusCompleted, out.Status)
	f.analyses.AssertCalled(t, "ClaimRun", mock.Anything, "project-1", "")
}

func TestAnalyze_ForceWhileSupersedeInFlight(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	// A forced re-analysis is already running; the record keeps reporting
	// completed while the claim is held.
	analyzedAt := time.Now().UTC()
	claimedAt := time.Now().UTC()
	f.analyses.On("Get", mock.Anything, "project-1").Return(&domain.AnalysisRecord{
		ProjectID:  "project-1",
		Status:     domain.AnalysisStatusCompleted,
		Version:    5,
		AnalyzedAt: &analyzedAt,
		ClaimedAt:  &claimedAt,
		TaskID:     "task-3",
	}, nil)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1", ForceReanalyze: true})

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusAnalyzing, out.Status)
	assert.Equal(t, "task-3", out.TaskID)
	f.analyses.AssertNotCalled(t, "ClaimRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_ConcurrentClaimLoses(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	f.analyses.On("Get", mock.Anything, "project-1").Return(nil, domain.ErrAnalysisNotFound)
	f.segments.On("ListActiveByProject", mock.Anything, "project-1").
		Return([]*domain.Segment{}, nil)
	f.analyses.On("ClaimRun", mock.Anything, "project-1", "").
		Return(int64(0), domain.ErrAnalysisInProgress)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1"})

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusAnalyzing, out.Status)
}

func TestAnalyze_LargeWorkloadDispatchesAsync(t *testing.T) {
	cfg := enabledConfig()
	cfg.AsyncSegmentThreshold = 2
	f := newRedundancyFixture(cfg)
	f.svc.WithUUIDGenerator(NewMockUUIDGenerator("task-1"))
	f.expectProject("project-1")
	f.analyses.On("Get", mock.Anything, "project-1").Return(nil, domain.ErrAnalysisNotFound)
	f.segments.On("ListActiveByProject", mock.Anything, "project-1").Return([]*domain.Segment{
		{ID: "seg-a"}, {ID: "seg-b"}, {ID: "seg-c"},
	}, nil)
	f.analyses.On("ClaimRun", mock.Anything, "project-1", "task-1").Return(int64(1), nil)

	var enqueued *domain.AnalysisJob
	f.jobs.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		enqueued = args.Get(1).(*domain.AnalysisJob)
	}).Return(nil)

	out, err := f.svc.Analyze(context.Background(), AnalyzeInput{ProjectID: "project-1"})

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusAnalyzing, out.Status)
	assert.Equal(t, "task-1", out.TaskID)

	require.NotNil(t, enqueued)
	assert.Equal(t, "task-1", enqueued.ID)
	assert.Equal(t, DefaultSimilarityThreshold, enqueued.SimilarityThreshold)
	assert.Equal(t, DefaultMaxGroups, enqueued.MaxGroups)
	assert.Equal(t, int64(1), enqueued.Version)
	assert.Equal(t, domain.JobStatusPending, enqueued.Status)
	f.analyses.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything)
}

func TestRunAnalysis_StaleCommitDiscarded(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.segments.On("ListActiveByProject", mock.Anything, "project-1").
		Return([]*domain.Segment{}, nil)
	f.analyses.On("CompleteRun", mock.Anything, mock.Anything).Return(domain.ErrStaleAnalysis)

	_, err := f.svc.RunAnalysis(context.Background(), "project-1", 0.85, 20, 3)

	assert.ErrorIs(t, err, domain.ErrStaleAnalysis)
}

func TestRunAnalysis_FailedGroupGetsZeroConfidence(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	segments := []*domain.Segment{
		{ID: "seg-a", ProjectID: "project-1", Status: domain.SegmentStatusActive},
		{ID: "seg-b", ProjectID: "project-1", Status: domain.SegmentStatusActive},
	}
	f.segments.On("ListActiveByProject", mock.Anything, "project-1").Return(segments, nil)
	f.index.On("FindSimilar", mock.Anything, "project-1", "seg-a").
		Return([]Neighbor{{SegmentID: "seg-b", Similarity: 0.95}}, nil)
	f.index.On("FindSimilar", mock.Anything, "project-1", "seg-b").
		Return([]Neighbor{}, nil)
	f.judge.On("JudgeGroup", mock.Anything, "", mock.Anything).
		Return(nil, assert.AnError)
	f.analyses.On("CompleteRun", mock.Anything, mock.Anything).Return(nil)

	record, err := f.svc.RunAnalysis(context.Background(), "project-1", 0.85, 20, 1)

	require.NoError(t, err)
	require.Len(t, record.Recommendations, 1)
	rec := record.Recommendations[0]
	assert.Equal(t, float64(0), rec.Confidence)
	assert.Equal(t, "evaluation failed", rec.PrimaryReason)
	assert.Equal(t, "seg-a", rec.KeepSegmentID)
}

func TestGetRecommendations_NotAnalyzed(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	f.analyses.On("Get", mock.Anything, "project-1").Return(nil, domain.ErrAnalysisNotFound)

	out, err := f.svc.GetRecommendations(context.Background(), RecommendationsInput{ProjectID: "project-1"})

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusNotAnalyzed, out.Status)
	assert.Empty(t, out.Recommendations)
}

func TestGetRecommendations_FiltersByConfidence(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	analyzedAt := time.Now().UTC()
	f.analyses.On("Get", mock.Anything, "project-1").Return(&domain.AnalysisRecord{
		ProjectID:  "project-1",
		Status:     domain.AnalysisStatusCompleted,
		AnalyzedAt: &analyzedAt,
		Recommendations: []domain.Recommendation{
			{GroupID: "group-1", KeepSegmentID: "seg-a", RemoveSegmentIDs: []string{"seg-b"}, Confidence: 0.92},
			{GroupID: "group-2", KeepSegmentID: "seg-c", RemoveSegmentIDs: []string{"seg-d", "seg-e"}, Confidence: 0.78},
		},
	}, nil)

	out, err := f.svc.GetRecommendations(context.Background(), RecommendationsInput{
		ProjectID:        "project-1",
		MinConfidence:    0.9,
		MinConfidenceSet: true,
	})

	require.NoError(t, err)
	require.Len(t, out.Recommendations, 1)
	assert.Equal(t, "group-1", out.Recommendations[0].GroupID)
	assert.Equal(t, 2, out.Summary.TotalGroups)
	assert.Equal(t, 1, out.Summary.FilteredGroups)
	assert.Equal(t, 1, out.Summary.HighConfidence)
	assert.Equal(t, 1, out.Summary.SegmentsToRemove)
}

func TestGetRecommendations_ScoresOmittedUnlessDetailed(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())
	f.expectProject("project-1")
	rec := domain.Recommendation{
		GroupID:       "group-1",
		KeepSegmentID: "seg-a",
		Confidence:    0.9,
		Scores:        []domain.QualityScore{{SegmentID: "seg-a", Overall: 0.9}},
	}
	f.analyses.On("Get", mock.Anything, "project-1").Return(&domain.AnalysisRecord{
		ProjectID:       "project-1",
		Status:          domain.AnalysisStatusCompleted,
		Recommendations: []domain.Recommendation{rec},
	}, nil)

	plain, err := f.svc.GetRecommendations(context.Background(), RecommendationsInput{ProjectID: "project-1"})
	require.NoError(t, err)
	assert.Nil(t, plain.Recommendations[0].Scores)

	detailed, err := f.svc.GetRecommendations(context.Background(), RecommendationsInput{
		ProjectID:               "project-1",
		IncludeDetailedAnalysis: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, detailed.Recommendations[0].Scores)
}

func TestGetRecommendations_InvalidConfidence(t *testing.T) {
	f := newRedundancyFixture(enabledConfig())

	_, err := f.svc.GetRecommendations(context.Background(), RecommendationsInput{
		ProjectID:        "project-1",
		MinConfidence:    1.5,
		MinConfidenceSet: true,
	})

	assert.ErrorIs(t, err, domain.ErrInvalidConfidence)
}
