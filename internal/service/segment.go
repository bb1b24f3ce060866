package service

import (
	"context"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/pagination"
	"github.com/cutroom-ai/cutroom/internal/telemetry"
)

// SegmentWriteRepository defines the repository interface for segment
// ingestion and listing.
type SegmentWriteRepository interface {
	Create(ctx context.Context, seg *domain.Segment) error
	GetByID(ctx context.Context, id string) (*domain.Segment, error)
	ListByProjectWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*SegmentPageResult, error)
}

type SegmentPageResult struct {
	Items      []*domain.Segment
	NextCursor string
	HasMore    bool
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// SegmentService handles business logic for transcript segments.
type SegmentService struct {
	segmentRepo      SegmentWriteRepository
	embeddingJobRepo EmbeddingJobRepositoryInterface
	txRunner         TxRunner
	uuidGen          UUIDGenerator
}

// NewSegmentService creates a new SegmentService instance
func NewSegmentService(
	segmentRepo SegmentWriteRepository,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
) *SegmentService {
	return &SegmentService{
		segmentRepo:      segmentRepo,
		embeddingJobRepo: embeddingJobRepo,
		uuidGen:          &DefaultUUIDGenerator{},
	}
}

// WithTxRunner makes Create write the segment and its embedding job in one
// transaction.
func (s *SegmentService) WithTxRunner(txRunner TxRunner) *SegmentService {
	s.txRunner = txRunner
	return s
}

// NewSegmentServiceWithUUIDGen creates a new SegmentService with custom UUID generator (for testing)
func NewSegmentServiceWithUUIDGen(
	segmentRepo SegmentWriteRepository,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
	uuidGen UUIDGenerator,
) *SegmentService {
	return &SegmentService{
		segmentRepo:      segmentRepo,
		embeddingJobRepo: embeddingJobRepo,
		uuidGen:          uuidGen,
	}
}

// CreateSegmentInput represents the input for ingesting a segment
type CreateSegmentInput struct {
	ProjectID  string
	WorkflowID string
	StartMS    int64
	Transcript string
}

type ListSegmentsInput struct {
	ProjectID string
	Cursor    string
	Limit     int
}

type ListSegmentsOutput struct {
	Items   []*domain.Segment
	Cursor  string
	HasMore bool
}

// Create ingests a transcript segment and queues an embedding job for it.
// The segment becomes eligible for redundancy analysis once the embedding
// worker has processed the job.
func (s *SegmentService) Create(ctx context.Context, input CreateSegmentInput) (*domain.Segment, error) {
	ctx, span := telemetry.StartSpan(ctx, "SegmentService.Create", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	segmentID := s.uuidGen.NewString()
	jobID := s.uuidGen.NewString()

	segment := &domain.Segment{
		ID:         segmentID,
		ProjectID:  input.ProjectID,
		WorkflowID: input.WorkflowID,
		StartMS:    input.StartMS,
		Transcript: input.Transcript,
		Status:     domain.SegmentStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := domain.ValidateSegment(segment); err != nil {
		return nil, err
	}

	job := &domain.EmbeddingJob{
		ID:        jobID,
		SegmentID: segmentID,
		Status:    domain.JobStatusPending,
		Retries:   0,
		Error:     "",
		CreatedAt: now,
	}

	if s.txRunner != nil {
		err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			if err := repos.Segments().Create(ctx, segment); err != nil {
				return err
			}
			return repos.EmbeddingJobs().Create(ctx, job)
		})
		if err != nil {
			return nil, err
		}
		return segment, nil
	}

	if err := s.segmentRepo.Create(ctx, segment); err != nil {
		return nil, err
	}

	if err := s.embeddingJobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	return segment, nil
}

// GetByID retrieves a segment by ID
func (s *SegmentService) GetByID(ctx context.Context, id string) (*domain.Segment, error) {
	return s.segmentRepo.GetByID(ctx, id)
}

// ListSegments retrieves a project's segments with cursor pagination.
func (s *SegmentService) ListSegments(ctx context.Context, input ListSegmentsInput) (*ListSegmentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SegmentService.ListSegments", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.segmentRepo.ListByProjectWithCursor(ctx, input.ProjectID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListSegmentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}
