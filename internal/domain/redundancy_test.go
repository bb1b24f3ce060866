package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRedundancyGroup(t *testing.T) {
	tests := []struct {
		name    string
		group   *RedundancyGroup
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid group",
			group: &RedundancyGroup{
				ID:         "grp1",
				SegmentIDs: []string{"a", "b", "c"},
			},
			wantErr: false,
		},
		{
			name:    "nil group",
			group:   nil,
			wantErr: true,
			errMsg:  "nil",
		},
		{
			name: "singleton group",
			group: &RedundancyGroup{
				ID:         "grp1",
				SegmentIDs: []string{"a"},
			},
			wantErr: true,
			errMsg:  "at least 2",
		},
		{
			name: "duplicate member",
			group: &RedundancyGroup{
				ID:         "grp1",
				SegmentIDs: []string{"a", "b", "a"},
			},
			wantErr: true,
			errMsg:  "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRedundancyGroup(tt.group)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQualityScoreValid(t *testing.T) {
	valid := QualityScore{SegmentID: "a", Delivery: 0.8, Clarity: 0.7, Completeness: 0.9, Overall: 0.85}
	assert.True(t, valid.Valid())

	outOfRange := QualityScore{SegmentID: "a", Delivery: 1.2, Clarity: 0.7, Completeness: 0.9, Overall: 0.85}
	assert.False(t, outOfRange.Valid())

	missingID := QualityScore{Delivery: 0.8, Clarity: 0.7, Completeness: 0.9, Overall: 0.85}
	assert.False(t, missingID.Valid())
}

func TestValidateRecommendation(t *testing.T) {
	group := RedundancyGroup{
		ID:         "grp1",
		SegmentIDs: []string{"a", "b", "c"},
	}

	tests := []struct {
		name    string
		rec     *Recommendation
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid recommendation",
			rec: &Recommendation{
				GroupID:          "grp1",
				KeepSegmentID:    "a",
				RemoveSegmentIDs: []string{"b", "c"},
				Confidence:       0.8,
				Group:            group,
			},
			wantErr: false,
		},
		{
			name: "keep segment in remove set",
			rec: &Recommendation{
				GroupID:          "grp1",
				KeepSegmentID:    "a",
				RemoveSegmentIDs: []string{"a", "b"},
				Confidence:       0.8,
				Group:            group,
			},
			wantErr: true,
			errMsg:  "remove set",
		},
		{
			name: "keep segment not a member",
			rec: &Recommendation{
				GroupID:          "grp1",
				KeepSegmentID:    "x",
				RemoveSegmentIDs: []string{"b", "c"},
				Confidence:       0.8,
				Group:            group,
			},
			wantErr: true,
			errMsg:  "not a group member",
		},
		{
			name: "remove set does not cover group",
			rec: &Recommendation{
				GroupID:          "grp1",
				KeepSegmentID:    "a",
				RemoveSegmentIDs: []string{"b"},
				Confidence:       0.8,
				Group:            group,
			},
			wantErr: true,
			errMsg:  "cover",
		},
		{
			name: "confidence out of range",
			rec: &Recommendation{
				GroupID:          "grp1",
				KeepSegmentID:    "a",
				RemoveSegmentIDs: []string{"b", "c"},
				Confidence:       1.5,
				Group:            group,
			},
			wantErr: true,
			errMsg:  "Confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecommendation(tt.rec)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
