package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cutroom-ai/cutroom/internal/domain"
)

const analysisClaimBatch = 5

// AnalysisJobRepository defines the interface for analysis job persistence
type AnalysisJobRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.AnalysisJob, error)
	UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// AnalysisRunner executes the redundancy analysis pipeline for a claimed job.
type AnalysisRunner interface {
	RunAnalysis(ctx context.Context, projectID string, threshold float64, maxGroups int, version int64) (*domain.AnalysisRecord, error)
}

// AnalysisStore releases a claimed analysis slot when a job fails for good.
type AnalysisStore interface {
	ReleaseRun(ctx context.Context, projectID string, version int64) error
}

// AnalysisWorker processes queued redundancy analysis runs.
type AnalysisWorker struct {
	repo   AnalysisJobRepository
	runner AnalysisRunner
	store  AnalysisStore
}

// NewAnalysisWorker creates a new AnalysisWorker instance
func NewAnalysisWorker(repo AnalysisJobRepository, runner AnalysisRunner, store AnalysisStore) *AnalysisWorker {
	return &AnalysisWorker{
		repo:   repo,
		runner: runner,
		store:  store,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *AnalysisWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, analysisClaimBatch)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending analysis jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing analysis job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *AnalysisWorker) processJob(ctx context.Context, job *domain.AnalysisJob) error {
	log.Printf("Running analysis job %s for project %s", job.ID, job.ProjectID)

	_, err := w.runner.RunAnalysis(ctx, job.ProjectID, job.SimilarityThreshold, job.MaxGroups, job.Version)
	if err != nil {
		// A newer run already committed; there is nothing to retry.
		if errors.Is(err, domain.ErrStaleAnalysis) {
			log.Printf("Analysis job %s superseded, marking completed", job.ID)
			return w.repo.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, "superseded by a newer run")
		}
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Analysis job %s completed successfully", job.ID)
	return nil
}

func (w *AnalysisWorker) handleJobFailure(ctx context.Context, job *domain.AnalysisJob, jobErr error) error {
	log.Printf("Analysis job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Analysis job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		// Give the claim back so a future analyze request can start fresh.
		if err := w.store.ReleaseRun(ctx, job.ProjectID, job.Version); err != nil {
			return fmt.Errorf("failed to release analysis claim: %w", err)
		}
		return nil
	}

	log.Printf("Analysis job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.JobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
