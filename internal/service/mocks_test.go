package service

import (
	"context"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockProjectRepository is a mock implementation of ProjectRepository
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

// MockSegmentRepository is a mock implementation of SegmentRepository
type MockSegmentRepository struct {
	mock.Mock
}

func (m *MockSegmentRepository) ListActiveByProject(ctx context.Context, projectID string) ([]*domain.Segment, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Segment), args.Error(1)
}

func (m *MockSegmentRepository) GetStates(ctx context.Context, projectID string, segmentIDs []string) (map[string]SegmentState, error) {
	args := m.Called(ctx, projectID, segmentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]SegmentState), args.Error(1)
}

func (m *MockSegmentRepository) MarkRemoved(ctx context.Context, projectID string, segmentIDs []string) error {
	args := m.Called(ctx, projectID, segmentIDs)
	return args.Error(0)
}

// MockAnalysisRepository is a mock implementation of AnalysisRepository
type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Get(ctx context.Context, projectID string) (*domain.AnalysisRecord, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisRecord), args.Error(1)
}

func (m *MockAnalysisRepository) ClaimRun(ctx context.Context, projectID, taskID string) (int64, error) {
	args := m.Called(ctx, projectID, taskID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAnalysisRepository) CompleteRun(ctx context.Context, record *domain.AnalysisRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAnalysisRepository) ReleaseRun(ctx context.Context, projectID string, version int64) error {
	args := m.Called(ctx, projectID, version)
	return args.Error(0)
}

// MockAnalysisJobRepository is a mock implementation of AnalysisJobRepository
type MockAnalysisJobRepository struct {
	mock.Mock
}

func (m *MockAnalysisJobRepository) Create(ctx context.Context, job *domain.AnalysisJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockVectorIndex is a mock implementation of VectorIndex
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) FindSimilar(ctx context.Context, projectID, segmentID string) ([]Neighbor, error) {
	args := m.Called(ctx, projectID, segmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Neighbor), args.Error(1)
}

// MockQualityJudge is a mock implementation of QualityJudge
type MockQualityJudge struct {
	mock.Mock
}

func (m *MockQualityJudge) JudgeGroup(ctx context.Context, creatorProfile string, candidates []JudgeCandidate) (*JudgeVerdict, error) {
	args := m.Called(ctx, creatorProfile, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*JudgeVerdict), args.Error(1)
}

// MockSegmentWriteRepository is a mock implementation of SegmentWriteRepository
type MockSegmentWriteRepository struct {
	mock.Mock
}

func (m *MockSegmentWriteRepository) Create(ctx context.Context, seg *domain.Segment) error {
	args := m.Called(ctx, seg)
	return args.Error(0)
}

func (m *MockSegmentWriteRepository) GetByID(ctx context.Context, id string) (*domain.Segment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Segment), args.Error(1)
}

func (m *MockSegmentWriteRepository) ListByProjectWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*SegmentPageResult, error) {
	args := m.Called(ctx, projectID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SegmentPageResult), args.Error(1)
}

// MockEmbeddingJobRepository is a mock implementation of EmbeddingJobRepositoryInterface
type MockEmbeddingJobRepository struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockUUIDGenerator is a mock UUID generator returning a fixed sequence
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}
