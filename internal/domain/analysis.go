package domain

import (
	"fmt"
	"time"
)

// AnalysisStatus represents the per-project analysis lifecycle
type AnalysisStatus string

const (
	AnalysisStatusNotAnalyzed AnalysisStatus = "not_analyzed"
	AnalysisStatusAnalyzing   AnalysisStatus = "analyzing"
	AnalysisStatusCompleted   AnalysisStatus = "completed"
	AnalysisStatusCached      AnalysisStatus = "cached"
)

// AnalysisRecord holds the last computed redundancy analysis for a project.
// One record per project; a re-analysis replaces the record atomically under
// the Version optimistic-locking guard. Applying recommendations never
// mutates a completed record. A completed record stays authoritative while a
// superseding run is in flight: Status only flips to analyzing for a
// project's first run.
type AnalysisRecord struct {
	ProjectID       string
	Status          AnalysisStatus
	Version         int64
	GroupsAnalyzed  int
	TotalPairs      int
	Recommendations []Recommendation // insertion order = group discovery order
	AnalyzedAt      *time.Time
	TaskID          string     // set while an async run is in flight
	ClaimedAt       *time.Time // set while any run holds the claim
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateAnalysisRecord validates an AnalysisRecord instance
func ValidateAnalysisRecord(r *AnalysisRecord) error {
	if r == nil {
		return fmt.Errorf("analysis record cannot be nil")
	}

	if r.ProjectID == "" {
		return fmt.Errorf("analysis record ProjectID is required")
	}

	if !isValidAnalysisStatus(r.Status) {
		return fmt.Errorf("analysis record Status is invalid: %s", r.Status)
	}

	if r.Status == AnalysisStatusCompleted && r.AnalyzedAt == nil {
		return fmt.Errorf("completed analysis record requires AnalyzedAt")
	}

	return nil
}

func isValidAnalysisStatus(s AnalysisStatus) bool {
	switch s {
	case AnalysisStatusNotAnalyzed, AnalysisStatusAnalyzing,
		AnalysisStatusCompleted, AnalysisStatusCached:
		return true
	}
	return false
}

// JobStatus represents the status of an async background job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// AnalysisJob represents a queued asynchronous analysis run
type AnalysisJob struct {
	ID                  string
	ProjectID           string
	SimilarityThreshold float64
	MaxGroups           int
	Version             int64 // version token the run must commit against
	Status              JobStatus
	Retries             int32
	Error               string
	CreatedAt           time.Time
	ProcessedAt         *time.Time
}

// ValidateAnalysisJob validates an AnalysisJob instance
func ValidateAnalysisJob(j *AnalysisJob) error {
	if j == nil {
		return fmt.Errorf("analysis job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("analysis job ID is required")
	}

	if j.ProjectID == "" {
		return fmt.Errorf("analysis job ProjectID is required")
	}

	if j.SimilarityThreshold <= 0 || j.SimilarityThreshold > 1 {
		return fmt.Errorf("analysis job SimilarityThreshold must be in (0,1]")
	}

	if j.MaxGroups <= 0 {
		return fmt.Errorf("analysis job MaxGroups must be positive")
	}

	if !isValidJobStatus(j.Status) {
		return fmt.Errorf("analysis job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("analysis job Retries cannot be negative")
	}

	return nil
}

// EmbeddingJob represents an async embedding generation job for a segment
type EmbeddingJob struct {
	ID          string
	SegmentID   string
	Status      JobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateEmbeddingJob validates an EmbeddingJob instance
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}

	if j.SegmentID == "" {
		return fmt.Errorf("embedding job SegmentID is required")
	}

	if !isValidJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}

	return nil
}

func isValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
