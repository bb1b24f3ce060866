package service

import (
	"fmt"
	"sort"

	"github.com/cutroom-ai/cutroom/internal/domain"
)

// confidenceGapScale is the overall-score gap at which gap-derived confidence
// saturates. A 0.25 lead over the runner-up is treated as a decisive win.
const confidenceGapScale = 0.25

const reasonEvaluationFailed = "evaluation failed"

// ConfidenceFunc derives a [0,1] confidence from the overall-score gap between
// the best and second-best candidate and the judge's certainty signal.
type ConfidenceFunc func(gap, certainty float64) float64

// DefaultConfidence scales the gap linearly up to confidenceGapScale and
// attenuates the result multiplicatively by the judge's certainty.
func DefaultConfidence(gap, certainty float64) float64 {
	if gap < 0 {
		gap = 0
	}
	c := gap / confidenceGapScale
	if c > 1 {
		c = 1
	}
	if certainty < 0 {
		certainty = 0
	}
	if certainty > 1 {
		certainty = 1
	}
	return c * certainty
}

// Synthesizer turns a group evaluation into a single keep/remove
// recommendation.
type Synthesizer interface {
	Synthesize(group domain.RedundancyGroup, eval GroupEvaluation) domain.Recommendation
}

// QualitySynthesizer picks the candidate with the highest judge overall score,
// ties broken by earliest segment id.
type QualitySynthesizer struct {
	confidence ConfidenceFunc
}

// NewQualitySynthesizer creates a QualitySynthesizer with the default
// confidence formula.
func NewQualitySynthesizer() *QualitySynthesizer {
	return NewQualitySynthesizerWithConfidence(DefaultConfidence)
}

// NewQualitySynthesizerWithConfidence creates a QualitySynthesizer with an
// explicit confidence formula.
func NewQualitySynthesizerWithConfidence(fn ConfidenceFunc) *QualitySynthesizer {
	return &QualitySynthesizer{confidence: fn}
}

func (s *QualitySynthesizer) Synthesize(group domain.RedundancyGroup, eval GroupEvaluation) domain.Recommendation {
	if eval.Err != nil {
		return degradedRecommendation(group)
	}

	valid := make([]domain.QualityScore, 0, len(eval.Scores))
	for _, score := range eval.Scores {
		if score.Valid() && isMember(group, score.SegmentID) {
			valid = append(valid, score)
		}
	}

	if len(valid) < 2 {
		return degradedRecommendation(group)
	}

	// Rank descending by overall, ties by earliest segment id.
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Overall != valid[j].Overall {
			return valid[i].Overall > valid[j].Overall
		}
		return valid[i].SegmentID < valid[j].SegmentID
	})

	keep := valid[0]
	gap := keep.Overall - valid[1].Overall

	return domain.Recommendation{
		GroupID:          group.ID,
		KeepSegmentID:    keep.SegmentID,
		RemoveSegmentIDs: removeSet(group, keep.SegmentID),
		Confidence:       s.confidence(gap, eval.Certainty),
		PrimaryReason:    primaryReason(keep, valid[1:]),
		Scores:           eval.Scores,
		Group:            group,
	}
}

// FirstOccurrenceSynthesizer reproduces the legacy "first occurrence wins"
// behavior: keep the earliest segment id with full confidence. Useful as a
// fallback when no judge is available and as a test double.
type FirstOccurrenceSynthesizer struct{}

func (s *FirstOccurrenceSynthesizer) Synthesize(group domain.RedundancyGroup, _ GroupEvaluation) domain.Recommendation {
	keep := earliestSegmentID(group)
	return domain.Recommendation{
		GroupID:          group.ID,
		KeepSegmentID:    keep,
		RemoveSegmentIDs: removeSet(group, keep),
		Confidence:       1.0,
		PrimaryReason:    "first occurrence",
		Group:            group,
	}
}

func degradedRecommendation(group domain.RedundancyGroup) domain.Recommendation {
	keep := earliestSegmentID(group)
	return domain.Recommendation{
		GroupID:          group.ID,
		KeepSegmentID:    keep,
		RemoveSegmentIDs: removeSet(group, keep),
		Confidence:       0,
		PrimaryReason:    reasonEvaluationFailed,
		Group:            group,
	}
}

func earliestSegmentID(group domain.RedundancyGroup) string {
	earliest := group.SegmentIDs[0]
	for _, id := range group.SegmentIDs[1:] {
		if id < earliest {
			earliest = id
		}
	}
	return earliest
}

func removeSet(group domain.RedundancyGroup, keep string) []string {
	removed := make([]string, 0, len(group.SegmentIDs)-1)
	for _, id := range group.SegmentIDs {
		if id != keep {
			removed = append(removed, id)
		}
	}
	return removed
}

func isMember(group domain.RedundancyGroup, segmentID string) bool {
	for _, id := range group.SegmentIDs {
		if id == segmentID {
			return true
		}
	}
	return false
}

// primaryReason names the dimension where the keep segment leads its rivals
// by the widest margin.
func primaryReason(keep domain.QualityScore, others []domain.QualityScore) string {
	n := float64(len(others))
	var meanDelivery, meanClarity, meanCompleteness float64
	for _, s := range others {
		meanDelivery += s.Delivery
		meanClarity += s.Clarity
		meanCompleteness += s.Completeness
	}
	meanDelivery /= n
	meanClarity /= n
	meanCompleteness /= n

	best := "delivery"
	bestLead := keep.Delivery - meanDelivery
	if lead := keep.Clarity - meanClarity; lead > bestLead {
		best, bestLead = "clarity", lead
	}
	if lead := keep.Completeness - meanCompleteness; lead > bestLead {
		best, bestLead = "completeness", lead
	}

	if bestLead <= 0 {
		return "best overall quality"
	}
	return fmt.Sprintf("best %s among %d takes", best, len(others)+1)
}
