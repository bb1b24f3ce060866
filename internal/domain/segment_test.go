package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSegment(t *testing.T) {
	now := time.Now()
	seg := NewSegment("seg1", "proj1", "wf1", 1500, "hello there", now)

	assert.Equal(t, "seg1", seg.ID)
	assert.Equal(t, "proj1", seg.ProjectID)
	assert.Equal(t, "wf1", seg.WorkflowID)
	assert.Equal(t, int64(1500), seg.StartMS)
	assert.Equal(t, SegmentStatusActive, seg.Status)
	assert.Equal(t, now, seg.CreatedAt)
	assert.Equal(t, now, seg.UpdatedAt)
	assert.Nil(t, seg.Embedding)
}

func TestValidateSegment(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		segment *Segment
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid segment",
			segment: NewSegment("seg1", "proj1", "wf1", 0, "some transcript", now),
			wantErr: false,
		},
		{
			name:    "nil segment",
			segment: nil,
			wantErr: true,
			errMsg:  "nil",
		},
		{
			name: "missing ID",
			segment: &Segment{
				ProjectID:  "proj1",
				WorkflowID: "wf1",
				Transcript: "text",
				Status:     SegmentStatusActive,
			},
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name: "missing WorkflowID",
			segment: &Segment{
				ID:         "seg1",
				ProjectID:  "proj1",
				Transcript: "text",
				Status:     SegmentStatusActive,
			},
			wantErr: true,
			errMsg:  "WorkflowID",
		},
		{
			name: "empty transcript",
			segment: &Segment{
				ID:         "seg1",
				ProjectID:  "proj1",
				WorkflowID: "wf1",
				Status:     SegmentStatusActive,
			},
			wantErr: true,
			errMsg:  "Transcript",
		},
		{
			name: "negative offset",
			segment: &Segment{
				ID:         "seg1",
				ProjectID:  "proj1",
				WorkflowID: "wf1",
				Transcript: "text",
				StartMS:    -1,
				Status:     SegmentStatusActive,
			},
			wantErr: true,
			errMsg:  "StartMS",
		},
		{
			name: "invalid status",
			segment: &Segment{
				ID:         "seg1",
				ProjectID:  "proj1",
				WorkflowID: "wf1",
				Transcript: "text",
				Status:     SegmentStatus("deleted"),
			},
			wantErr: true,
			errMsg:  "Status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSegment(tt.segment)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
