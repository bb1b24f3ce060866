package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
)

const (
	indexMaxAttempts    = 3
	indexInitialBackoff = 100 * time.Millisecond
)

// Neighbor is one similarity-search hit for a segment.
type Neighbor struct {
	SegmentID  string
	Similarity float64
}

// VectorIndex wraps the embedding similarity search structure. FindSimilar
// returns neighbors of the given segment sorted descending by similarity,
// truncated to a bounded count. It returns domain.ErrIndexUnavailable when
// the index has not been built for the project; callers must fail closed
// rather than fall back to order-based grouping.
type VectorIndex interface {
	FindSimilar(ctx context.Context, projectID, segmentID string) ([]Neighbor, error)
}

type pairKey struct {
	a, b string
}

func makePairKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// unionFind tracks connected components over segment ids.
type unionFind struct {
	parent map[string]string
}

func newUnionFind(ids []string) *unionFind {
	parent := make(map[string]string, len(ids))
	for _, id := range ids {
		parent[id] = id
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(id string) string {
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// Path compression
	for u.parent[id] != root {
		id, u.parent[id] = u.parent[id], root
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// findSimilarWithRetry retries transient index lookup failures with
// exponential backoff. Domain errors (index not built, segment gone) are
// deterministic and returned immediately.
func findSimilarWithRetry(ctx context.Context, index VectorIndex, projectID, segmentID string) ([]Neighbor, error) {
	backoff := indexInitialBackoff
	var lastErr error

	for attempt := 1; attempt <= indexMaxAttempts; attempt++ {
		neighbors, err := index.FindSimilar(ctx, projectID, segmentID)
		if err == nil {
			return neighbors, nil
		}
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		lastErr = err
		if attempt == indexMaxAttempts {
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

// BuildGroups partitions the given active segments into disjoint redundancy
// groups. An edge exists between two segments iff their similarity is at or
// above threshold; connected components of size >= 2 become groups, so
// membership is transitive: A~B and B~C land in one group even when A and C
// alone fall below the threshold. Output is truncated to maxGroups keeping
// the groups with the highest mean internal similarity, ties broken by
// discovery order; surviving groups are returned in discovery order.
//
// Returns the groups and the total number of distinct similar pairs found.
func BuildGroups(ctx context.Context, index VectorIndex, segments []*domain.Segment, threshold float64, maxGroups int) ([]domain.RedundancyGroup, int, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, 0, domain.ErrInvalidSimilarityThreshold
	}
	if maxGroups <= 0 {
		return nil, 0, domain.ErrInvalidMaxGroups
	}
	if len(segments) < 2 {
		return nil, 0, nil
	}

	ids := make([]string, len(segments))
	known := make(map[string]bool, len(segments))
	for i, s := range segments {
		ids[i] = s.ID
		known[s.ID] = true
	}

	uf := newUnionFind(ids)
	edges := make(map[pairKey]float64)

	for _, seg := range segments {
		neighbors, err := findSimilarWithRetry(ctx, index, seg.ProjectID, seg.ID)
		if err != nil {
			return nil, 0, err
		}
		for _, n := range neighbors {
			if n.SegmentID == seg.ID || !known[n.SegmentID] {
				continue
			}
			if n.Similarity < threshold {
				continue
			}
			key := makePairKey(seg.ID, n.SegmentID)
			if prev, seen := edges[key]; !seen || n.Similarity > prev {
				edges[key] = n.Similarity
			}
			uf.union(seg.ID, n.SegmentID)
		}
	}

	totalPairs := len(edges)
	if totalPairs == 0 {
		return nil, 0, nil
	}

	// Collect components in discovery order (order of the first member in
	// the input segment slice).
	memberOrder := make(map[string][]string)
	var rootOrder []string
	for _, s := range segments {
		root := uf.find(s.ID)
		if _, seen := memberOrder[root]; !seen {
			rootOrder = append(rootOrder, root)
		}
		memberOrder[root] = append(memberOrder[root], s.ID)
	}

	var groups []domain.RedundancyGroup
	for _, root := range rootOrder {
		members := memberOrder[root]
		if len(members) < 2 {
			continue
		}

		inGroup := make(map[string]bool, len(members))
		for _, id := range members {
			inGroup[id] = true
		}

		var pairs []domain.SimilarityPair
		var sum float64
		for key, sim := range edges {
			if inGroup[key.a] && inGroup[key.b] {
				pairs = append(pairs, domain.SimilarityPair{SegmentA: key.a, SegmentB: key.b, Similarity: sim})
				sum += sim
			}
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].SegmentA != pairs[j].SegmentA {
				return pairs[i].SegmentA < pairs[j].SegmentA
			}
			return pairs[i].SegmentB < pairs[j].SegmentB
		})

		groups = append(groups, domain.RedundancyGroup{
			ID:             fmt.Sprintf("group-%d", len(groups)+1),
			SegmentIDs:     members,
			Pairs:          pairs,
			MeanSimilarity: sum / float64(len(pairs)),
		})
	}

	if len(groups) > maxGroups {
		// Rank by mean internal similarity, keep the top maxGroups, then
		// restore discovery order so downstream output stays stable.
		type ranked struct {
			idx   int
			group domain.RedundancyGroup
		}
		rankedGroups := make([]ranked, len(groups))
		for i, g := range groups {
			rankedGroups[i] = ranked{idx: i, group: g}
		}
		sort.SliceStable(rankedGroups, func(i, j int) bool {
			return rankedGroups[i].group.MeanSimilarity > rankedGroups[j].group.MeanSimilarity
		})
		kept := rankedGroups[:maxGroups]
		sort.Slice(kept, func(i, j int) bool { return kept[i].idx < kept[j].idx })

		groups = make([]domain.RedundancyGroup, len(kept))
		for i, r := range kept {
			groups[i] = r.group
		}
	}

	return groups, totalPairs, nil
}
