package service

import (
	"errors"
	"testing"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupOf(ids ...string) domain.RedundancyGroup {
	return domain.RedundancyGroup{ID: "group-1", SegmentIDs: ids}
}

func score(id string, delivery, clarity, completeness, overall float64) domain.QualityScore {
	return domain.QualityScore{
		SegmentID:    id,
		Delivery:     delivery,
		Clarity:      clarity,
		Completeness: completeness,
		Overall:      overall,
	}
}

func TestDefaultConfidence(t *testing.T) {
	tests := []struct {
		name      string
		gap       float64
		certainty float64
		want      float64
	}{
		{name: "saturating gap", gap: 0.25, certainty: 1.0, want: 1.0},
		{name: "gap beyond saturation clamps", gap: 0.5, certainty: 1.0, want: 1.0},
		{name: "linear below saturation", gap: 0.125, certainty: 1.0, want: 0.5},
		{name: "certainty attenuates", gap: 0.25, certainty: 0.5, want: 0.5},
		{name: "zero gap", gap: 0, certainty: 1.0, want: 0},
		{name: "negative gap clamps to zero", gap: -0.1, certainty: 1.0, want: 0},
		{name: "certainty above one clamps", gap: 0.25, certainty: 1.5, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DefaultConfidence(tt.gap, tt.certainty), 1e-9)
		})
	}
}

func TestQualitySynthesizer_KeepsHighestOverall(t *testing.T) {
	syn := NewQualitySynthesizer()
	group := groupOf("seg-a", "seg-b", "seg-c")
	eval := GroupEvaluation{
		Scores: []domain.QualityScore{
			score("seg-a", 0.7, 0.7, 0.7, 0.70),
			score("seg-b", 0.9, 0.9, 0.9, 0.90),
			score("seg-c", 0.6, 0.6, 0.6, 0.60),
		},
		Certainty: 1.0,
	}

	rec := syn.Synthesize(group, eval)

	assert.Equal(t, "seg-b", rec.KeepSegmentID)
	assert.ElementsMatch(t, []string{"seg-a", "seg-c"}, rec.RemoveSegmentIDs)
	require.NoError(t, domain.ValidateRecommendation(&rec))
}

func TestQualitySynthesizer_WiderGapMeansHigherConfidence(t *testing.T) {
	syn := NewQualitySynthesizer()

	clear := syn.Synthesize(groupOf("seg-a", "seg-b"), GroupEvaluation{
		Scores: []domain.QualityScore{
			score("seg-a", 0.88, 0.88, 0.88, 0.88),
			score("seg-b", 0.74, 0.74, 0.74, 0.74),
		},
		Certainty: 1.0,
	})
	narrow := syn.Synthesize(groupOf("seg-c", "seg-d"), GroupEvaluation{
		Scores: []domain.QualityScore{
			score("seg-c", 0.80, 0.80, 0.80, 0.80),
			score("seg-d", 0.78, 0.78, 0.78, 0.78),
		},
		Certainty: 1.0,
	})

	assert.Greater(t, clear.Confidence, narrow.Confidence)
}

func TestQualitySynthesizer_TieKeepsEarliestID(t *testing.T) {
	syn := NewQualitySynthesizer()
	group := groupOf("seg-z", "seg-a", "seg-m")
	eval := GroupEvaluation{
		Scores: []domain.QualityScore{
			score("seg-z", 0.8, 0.8, 0.8, 0.80),
			score("seg-a", 0.8, 0.8, 0.8, 0.80),
			score("seg-m", 0.6, 0.6, 0.6, 0.60),
		},
		Certainty: 1.0,
	}

	rec := syn.Synthesize(group, eval)

	assert.Equal(t, "seg-a", rec.KeepSegmentID)
	assert.Equal(t, float64(0), rec.Confidence)
}

func TestQualitySynthesizer_EvaluationFailureDegrades(t *testing.T) {
	syn := NewQualitySynthesizer()
	group := groupOf("seg-b", "seg-a")

	rec := syn.Synthesize(group, GroupEvaluation{Err: errors.New("judge timeout")})

	assert.Equal(t, "seg-a", rec.KeepSegmentID)
	assert.Equal(t, float64(0), rec.Confidence)
	assert.Equal(t, "evaluation failed", rec.PrimaryReason)
	require.NoError(t, domain.ValidateRecommendation(&rec))
}

func TestQualitySynthesizer_TooFewValidScoresDegrades(t *testing.T) {
	syn := NewQualitySynthesizer()
	group := groupOf("seg-a", "seg-b")
	eval := GroupEvaluation{
		Scores: []domain.QualityScore{
			score("seg-a", 0.8, 0.8, 0.8, 0.80),
			// Out-of-range score is discarded, leaving one valid.
			score("seg-b", 1.4, 0.8, 0.8, 0.80),
		},
		Certainty: 1.0,
	}

	rec := syn.Synthesize(group, eval)

	assert.Equal(t, float64(0), rec.Confidence)
	assert.Equal(t, "evaluation failed", rec.PrimaryReason)
}

func TestQualitySynthesizer_IgnoresScoresForNonMembers(t *testing.T) {
	syn := NewQualitySynthesizer()
	group := groupOf("seg-a", "seg-b")
	eval := GroupEvaluation{
		Scores: []domain.QualityScore{
			score("seg-a", 0.7, 0.7, 0.7, 0.70),
			score("seg-b", 0.6, 0.6, 0.6, 0.60),
			score("seg-intruder", 0.99, 0.99, 0.99, 0.99),
		},
		Certainty: 1.0,
	}

	rec := syn.Synthesize(group, eval)

	assert.Equal(t, "seg-a", rec.KeepSegmentID)
}

func TestQualitySynthesizer_PrimaryReasonNamesLeadingDimension(t *testing.T) {
	syn := NewQualitySynthesizer()
	group := groupOf("seg-a", "seg-b")
	eval := GroupEvaluation{
		Scores: []domain.QualityScore{
			score("seg-a", 0.9, 0.7, 0.7, 0.85),
			score("seg-b", 0.5, 0.7, 0.7, 0.65),
		},
		Certainty: 1.0,
	}

	rec := syn.Synthesize(group, eval)

	assert.Equal(t, "best delivery among 2 takes", rec.PrimaryReason)
}

func TestFirstOccurrenceSynthesizer(t *testing.T) {
	syn := &FirstOccurrenceSynthesizer{}
	group := groupOf("seg-c", "seg-a", "seg-b")

	rec := syn.Synthesize(group, GroupEvaluation{})

	assert.Equal(t, "seg-a", rec.KeepSegmentID)
	assert.ElementsMatch(t, []string{"seg-b", "seg-c"}, rec.RemoveSegmentIDs)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.Equal(t, "first occurrence", rec.PrimaryReason)
}
