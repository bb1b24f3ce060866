package domain

import (
	"fmt"
	"time"
)

// SegmentStatus represents the lifecycle status of a transcript segment
type SegmentStatus string

const (
	SegmentStatusActive           SegmentStatus = "active"
	SegmentStatusMarkedForRemoval SegmentStatus = "marked_for_removal"
)

// Segment represents one transcript segment of a source workflow.
// Content is written at ingestion; only the status flag is mutated afterward,
// and only by applying redundancy recommendations.
type Segment struct {
	ID         string
	ProjectID  string
	WorkflowID string
	StartMS    int64
	Transcript string
	Status     SegmentStatus
	Embedding  []float32 // nil until the embedding pipeline has processed the segment
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSegment creates a new Segment instance in active status
func NewSegment(id, projectID, workflowID string, startMS int64, transcript string, createdAt time.Time) *Segment {
	return &Segment{
		ID:         id,
		ProjectID:  projectID,
		WorkflowID: workflowID,
		StartMS:    startMS,
		Transcript: transcript,
		Status:     SegmentStatusActive,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// ValidateSegment validates a Segment instance
func ValidateSegment(s *Segment) error {
	if s == nil {
		return fmt.Errorf("segment cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("segment ID is required")
	}

	if s.ProjectID == "" {
		return fmt.Errorf("segment ProjectID is required")
	}

	if s.WorkflowID == "" {
		return fmt.Errorf("segment WorkflowID is required")
	}

	if s.Transcript == "" {
		return fmt.Errorf("segment Transcript is required")
	}

	if s.StartMS < 0 {
		return fmt.Errorf("segment StartMS cannot be negative")
	}

	if !isValidSegmentStatus(s.Status) {
		return fmt.Errorf("segment Status is invalid: %s", s.Status)
	}

	return nil
}

func isValidSegmentStatus(s SegmentStatus) bool {
	switch s {
	case SegmentStatusActive, SegmentStatusMarkedForRemoval:
		return true
	}
	return false
}
