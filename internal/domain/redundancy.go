package domain

import "fmt"

// SimilarityPair records the pairwise similarity that justified putting two
// segments in the same redundancy group.
type SimilarityPair struct {
	SegmentA   string  `json:"segment_a"`
	SegmentB   string  `json:"segment_b"`
	Similarity float64 `json:"similarity"`
}

// RedundancyGroup is a maximal set of segments judged similar enough, under a
// threshold and transitively, to represent the same content. Groups are
// immutable once an analysis run completes; a re-analysis supersedes them.
type RedundancyGroup struct {
	ID         string           `json:"id"`
	SegmentIDs []string         `json:"segment_ids"`
	Pairs      []SimilarityPair `json:"pairs"`
	// MeanSimilarity is the mean of all intra-group pair similarities,
	// used to rank groups when truncating to max_groups.
	MeanSimilarity float64 `json:"mean_similarity"`
}

// ValidateRedundancyGroup validates a RedundancyGroup instance
func ValidateRedundancyGroup(g *RedundancyGroup) error {
	if g == nil {
		return fmt.Errorf("redundancy group cannot be nil")
	}

	if g.ID == "" {
		return fmt.Errorf("redundancy group ID is required")
	}

	if len(g.SegmentIDs) < 2 {
		return fmt.Errorf("redundancy group must have at least 2 members, got %d", len(g.SegmentIDs))
	}

	seen := make(map[string]struct{}, len(g.SegmentIDs))
	for _, id := range g.SegmentIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("redundancy group has duplicate member %s", id)
		}
		seen[id] = struct{}{}
	}

	return nil
}

// QualityScore holds the judge's per-segment quality judgment within a group.
// All dimensions are in [0,1]. Overall is the judge's own aggregate and is
// authoritative; it is never recomputed locally.
type QualityScore struct {
	SegmentID    string  `json:"segment_id"`
	Delivery     float64 `json:"delivery"`
	Clarity      float64 `json:"clarity"`
	Completeness float64 `json:"completeness"`
	Overall      float64 `json:"overall"`
	Notes        string  `json:"notes,omitempty"`
}

// Valid reports whether the score carries usable dimension values.
func (q QualityScore) Valid() bool {
	for _, v := range []float64{q.Delivery, q.Clarity, q.Completeness, q.Overall} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return q.SegmentID != ""
}

// Recommendation is the synthesized keep/remove decision for one group.
// Read-only after synthesis.
type Recommendation struct {
	GroupID          string          `json:"group_id"`
	KeepSegmentID    string          `json:"keep_segment_id"`
	RemoveSegmentIDs []string        `json:"remove_segment_ids"`
	Confidence       float64         `json:"confidence"`
	PrimaryReason    string          `json:"primary_reason"`
	Scores           []QualityScore  `json:"scores,omitempty"`
	Group            RedundancyGroup `json:"group"`
}

// ValidateRecommendation checks the structural invariants of a recommendation:
// the keep segment is a group member, is never in the remove set, and the
// remove set plus the keep segment covers the group exactly.
func ValidateRecommendation(r *Recommendation) error {
	if r == nil {
		return fmt.Errorf("recommendation cannot be nil")
	}

	if r.KeepSegmentID == "" {
		return fmt.Errorf("recommendation KeepSegmentID is required")
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("recommendation Confidence must be in [0,1], got %f", r.Confidence)
	}

	members := make(map[string]struct{}, len(r.Group.SegmentIDs))
	for _, id := range r.Group.SegmentIDs {
		members[id] = struct{}{}
	}

	if _, ok := members[r.KeepSegmentID]; !ok {
		return fmt.Errorf("keep segment %s is not a group member", r.KeepSegmentID)
	}

	if len(r.RemoveSegmentIDs) != len(r.Group.SegmentIDs)-1 {
		return fmt.Errorf("remove set must cover all non-keep members")
	}

	for _, id := range r.RemoveSegmentIDs {
		if id == r.KeepSegmentID {
			return fmt.Errorf("keep segment %s appears in remove set", id)
		}
		if _, ok := members[id]; !ok {
			return fmt.Errorf("remove segment %s is not a group member", id)
		}
	}

	return nil
}

// ChangeLogEntry describes one segment removal computed by the apply engine.
// Entries are produced fresh on every apply call and never updated; the
// durable removal state lives in Segment.Status.
type ChangeLogEntry struct {
	WorkflowID     string `json:"workflow_id"`
	SegmentID      string `json:"segment_id"`
	Reason         string `json:"reason"`
	AlreadyRemoved bool   `json:"already_removed,omitempty"`
}
