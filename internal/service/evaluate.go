package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"golang.org/x/sync/semaphore"
)

const (
	// Bounded concurrency for judge calls to respect upstream rate limits.
	defaultJudgeConcurrency = 4

	judgeMaxAttempts    = 3
	judgeInitialBackoff = 500 * time.Millisecond
)

// JudgeCandidate is one segment submitted to the quality judge.
type JudgeCandidate struct {
	SegmentID  string
	Transcript string
}

// JudgeScore is the judge's verdict for one candidate, all dimensions in [0,1].
type JudgeScore struct {
	SegmentID    string
	Delivery     float64
	Clarity      float64
	Completeness float64
	Overall      float64
	Notes        string
}

// JudgeVerdict is the judge's comparative verdict for a whole group.
type JudgeVerdict struct {
	Scores    []JudgeScore
	Certainty float64
	Summary   string
}

// QualityJudge requests a multi-dimensional quality judgment for a group of
// candidate segments in a single invocation, so the judge can produce
// comparative notes referencing the other candidates.
type QualityJudge interface {
	JudgeGroup(ctx context.Context, creatorProfile string, candidates []JudgeCandidate) (*JudgeVerdict, error)
}

// GroupEvaluation holds the evaluation outcome for one group. When Err is set
// the group degrades to a zero-confidence recommendation instead of aborting
// the run.
type GroupEvaluation struct {
	Scores    []domain.QualityScore
	Certainty float64
	Summary   string
	Err       error
}

// Evaluator runs judge calls for all retained groups with bounded concurrency
// and per-group retry.
type Evaluator struct {
	judge          QualityJudge
	creatorProfile string
	concurrency    int64
	maxAttempts    int
	initialBackoff time.Duration
}

// NewEvaluator creates an Evaluator with default limits.
func NewEvaluator(judge QualityJudge, creatorProfile string) *Evaluator {
	return NewEvaluatorWithConcurrency(judge, creatorProfile, defaultJudgeConcurrency)
}

// NewEvaluatorWithConcurrency creates an Evaluator with an explicit judge-call
// concurrency limit.
func NewEvaluatorWithConcurrency(judge QualityJudge, creatorProfile string, concurrency int) *Evaluator {
	if concurrency <= 0 {
		concurrency = defaultJudgeConcurrency
	}
	return &Evaluator{
		judge:          judge,
		creatorProfile: creatorProfile,
		concurrency:    int64(concurrency),
		maxAttempts:    judgeMaxAttempts,
		initialBackoff: judgeInitialBackoff,
	}
}

// EvaluateGroups judges every retained group exactly once per segment via one
// batched call per group. Results are positionally aligned with the input
// groups. Individual judge failures are isolated into the corresponding
// GroupEvaluation.Err.
func (e *Evaluator) EvaluateGroups(ctx context.Context, groups []domain.RedundancyGroup, segments map[string]*domain.Segment) []GroupEvaluation {
	results := make([]GroupEvaluation, len(groups))
	sem := semaphore.NewWeighted(e.concurrency)
	var wg sync.WaitGroup

	for i, group := range groups {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = GroupEvaluation{Err: err}
			continue
		}

		wg.Add(1)
		go func(i int, group domain.RedundancyGroup) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = e.evaluateGroup(ctx, group, segments)
		}(i, group)
	}

	wg.Wait()
	return results
}

func (e *Evaluator) evaluateGroup(ctx context.Context, group domain.RedundancyGroup, segments map[string]*domain.Segment) GroupEvaluation {
	candidates := make([]JudgeCandidate, 0, len(group.SegmentIDs))
	for _, id := range group.SegmentIDs {
		seg, ok := segments[id]
		if !ok {
			continue
		}
		candidates = append(candidates, JudgeCandidate{SegmentID: seg.ID, Transcript: seg.Transcript})
	}

	verdict, err := e.judgeWithRetry(ctx, candidates)
	if err != nil {
		log.Printf("judge call failed for group %s after %d attempts: %v", group.ID, e.maxAttempts, err)
		return GroupEvaluation{Err: err}
	}

	scores := make([]domain.QualityScore, len(verdict.Scores))
	for i, s := range verdict.Scores {
		scores[i] = domain.QualityScore{
			SegmentID:    s.SegmentID,
			Delivery:     s.Delivery,
			Clarity:      s.Clarity,
			Completeness: s.Completeness,
			Overall:      s.Overall,
			Notes:        s.Notes,
		}
	}

	return GroupEvaluation{
		Scores:    scores,
		Certainty: verdict.Certainty,
		Summary:   verdict.Summary,
	}
}

func (e *Evaluator) judgeWithRetry(ctx context.Context, candidates []JudgeCandidate) (*JudgeVerdict, error) {
	backoff := e.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		verdict, err := e.judge.JudgeGroup(ctx, e.creatorProfile, candidates)
		if err == nil {
			return verdict, nil
		}
		lastErr = err

		if attempt == e.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, lastErr
}
