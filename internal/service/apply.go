package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/telemetry"
)

// ApplyInput are the parameters of an apply request. An empty GroupIDs
// selects every recommendation in the current record.
type ApplyInput struct {
	ProjectID        string
	GroupIDs         []string
	MinConfidence    float64
	MinConfidenceSet bool
	DryRun           bool
}

// ApplyOutput reports what an apply run changed, or would change under
// dry-run.
type ApplyOutput struct {
	Applied   bool
	DryRun    bool
	ChangeLog []domain.ChangeLogEntry
	Summary   ApplySummary
}

// ApplySummary aggregates an apply run.
type ApplySummary struct {
	RecommendationsApplied int
	SegmentsMarkedRemove   int
	SegmentsAlreadyRemoved int
	WorkflowsAffected      int
}

// Apply marks the removal candidates of the selected recommendations at or
// above the confidence floor. Segments already marked are reported and
// skipped, so re-applying the same recommendations is a no-op. The commit is
// a single transaction: either every pending segment is marked or none are.
func (s *RedundancyService) Apply(ctx context.Context, input ApplyInput) (*ApplyOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RedundancyService.Apply", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "apply",
	})
	defer span.End()

	if err := s.checkGate(); err != nil {
		return nil, err
	}

	minConfidence := input.MinConfidence
	if !input.MinConfidenceSet {
		minConfidence = DefaultApplyMinConfidence
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
			return nil, fmt.Errorf("%w: project has no completed analysis", domain.ErrInvalidOperation)
		}
		return nil, err
	}
	if record.Status != domain.AnalysisStatusCompleted && record.Status != domain.AnalysisStatusCached {
		return nil, fmt.Errorf("%w: analysis status is %s", domain.ErrInvalidOperation, record.Status)
	}

	selected := func(string) bool { return true }
	if len(input.GroupIDs) > 0 {
		wanted := make(map[string]bool, len(input.GroupIDs))
		for _, id := range input.GroupIDs {
			wanted[id] = true
		}
		selected = func(groupID string) bool { return wanted[groupID] }
	}

	var candidates []domain.ChangeLogEntry
	var segmentIDs []string
	for _, rec := range record.Recommendations {
		if !selected(rec.GroupID) || rec.Confidence < minConfidence {
			continue
		}
		for _, segID := range rec.RemoveSegmentIDs {
			candidates = append(candidates, domain.ChangeLogEntry{
				SegmentID: segID,
				Reason:    rec.PrimaryReason,
			})
			segmentIDs = append(segmentIDs, segID)
		}
	}

	out := &ApplyOutput{Applied: !input.DryRun, DryRun: input.DryRun}
	if len(candidates) == 0 {
		return out, nil
	}

	states, err := s.segments.GetStates(ctx, input.ProjectID, segmentIDs)
	if err != nil {
		return nil, err
	}

	appliedRecs := make(map[string]bool)
	workflows := make(map[string]bool)
	var pending []string
	for i := range candidates {
		state, ok := states[candidates[i].SegmentID]
		if !ok {
			return nil, fmt.Errorf("%w: recommended segment %s no longer exists", domain.ErrSegmentNotFound, candidates[i].SegmentID)
		}
		candidates[i].WorkflowID = state.WorkflowID
		if state.Status != domain.SegmentStatusActive {
			candidates[i].AlreadyRemoved = true
			out.Summary.SegmentsAlreadyRemoved++
		} else {
			pending = append(pending, candidates[i].SegmentID)
			out.Summary.SegmentsMarkedRemove++
			if state.WorkflowID != "" {
				workflows[state.WorkflowID] = true
			}
		}
	}

	if !input.DryRun && len(pending) > 0 {
		if err := s.segments.MarkRemoved(ctx, input.ProjectID, pending); err != nil {
			return nil, err
		}
	}

	for _, rec := range record.Recommendations {
		if !selected(rec.GroupID) || rec.Confidence < minConfidence {
			continue
		}
		appliedRecs[rec.GroupID] = true
	}
	out.Summary.RecommendationsApplied = len(appliedRecs)
	out.Summary.WorkflowsAffected = len(workflows)
	out.ChangeLog = candidates

	return out, nil
}
