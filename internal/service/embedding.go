package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cutroom-ai/cutroom/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingSegmentRepository defines the repository interface for embedding operations
type EmbeddingSegmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Segment, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// EmbeddingService generates and stores transcript embeddings for segments
type EmbeddingService struct {
	client EmbeddingClient
	repo   EmbeddingSegmentRepository
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, repo EmbeddingSegmentRepository) *EmbeddingService {
	return &EmbeddingService{
		client: client,
		repo:   repo,
	}
}

// GenerateEmbedding generates and stores an embedding for the given segment ID.
// This method is called by the background worker.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, segmentID string) error {
	segment, err := s.repo.GetByID(ctx, segmentID)
	if err != nil {
		return err
	}

	text := strings.TrimSpace(segment.Transcript)
	if text == "" {
		return fmt.Errorf("segment %s has no transcript to embed", segmentID)
	}

	embedding, err := s.client.GenerateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := s.repo.UpdateEmbedding(ctx, segmentID, embedding); err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}

	return nil
}
