//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/pagination"
	"github.com/cutroom-ai/cutroom/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProject(ctx context.Context, t *testing.T, projectRepo *ProjectRepository) *domain.Project {
	project := &domain.Project{
		ID:        uuid.NewString(),
		Name:      "Test Project",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, projectRepo.Create(ctx, project))
	return project
}

func newTestSegment(projectID, transcript string, startMS int64) *domain.Segment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Segment{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		StartMS:    startMS,
		Transcript: transcript,
		Status:     domain.SegmentStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// axisEmbedding returns a 1536-dim unit vector pointing along the given axis,
// blended toward axis 0 by the given amount so cosine similarity is
// controllable per pair.
func axisEmbedding(axis int, blend float32) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1 - blend
	v[0] += blend
	return v
}

func TestSegmentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	segmentRepo := NewSegmentRepository(pool)

	project := newTestProject(ctx, t, projectRepo)

	seg := newTestSegment(project.ID, "welcome to the channel", 1500)
	require.NoError(t, segmentRepo.Create(ctx, seg))

	retrieved, err := segmentRepo.GetByID(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, seg.ID, retrieved.ID)
	assert.Equal(t, seg.ProjectID, retrieved.ProjectID)
	assert.Equal(t, seg.Transcript, retrieved.Transcript)
	assert.Equal(t, int64(1500), retrieved.StartMS)
	assert.Equal(t, domain.SegmentStatusActive, retrieved.Status)
	assert.Nil(t, retrieved.Embedding)
}

func TestSegmentRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	segmentRepo := NewSegmentRepository(pool)

	_, err := segmentRepo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrSegmentNotFound)
}

func TestSegmentRepository_UpdateEmbeddingAndFindSimilar(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	segmentRepo := NewSegmentRepository(pool)

	project := newTestProject(ctx, t, projectRepo)

	segA := newTestSegment(project.ID, "take one", 0)
	segB := newTestSegment(project.ID, "take two", 5000)
	segC := newTestSegment(project.ID, "different topic", 10000)
	for _, s := range []*domain.Segment{segA, segB, segC} {
		require.NoError(t, segmentRepo.Create(ctx, s))
	}

	// A and B point the same way, C is orthogonal.
	require.NoError(t, segmentRepo.UpdateEmbedding(ctx, segA.ID, axisEmbedding(1, 0)))
	require.NoError(t, segmentRepo.UpdateEmbedding(ctx, segB.ID, axisEmbedding(1, 0.05)))
	require.NoError(t, segmentRepo.UpdateEmbedding(ctx, segC.ID, axisEmbedding(2, 0)))

	neighbors, err := segmentRepo.FindSimilar(ctx, project.ID, segA.ID)
	require.NoError(t, err)
	require.NotEmpty(t, neighbors)
	assert.Equal(t, segB.ID, neighbors[0].SegmentID)
	assert.Greater(t, neighbors[0].Similarity, 0.9)
}

func TestSegmentRepository_FindSimilar_NoEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	segmentRepo := NewSegmentRepository(pool)

	project := newTestProject(ctx, t, projectRepo)
	seg := newTestSegment(project.ID, "unembedded", 0)
	require.NoError(t, segmentRepo.Create(ctx, seg))

	_, err := segmentRepo.FindSimilar(ctx, project.ID, seg.ID)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestSegmentRepository_ListActiveByProject(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	segmentRepo := NewSegmentRepository(pool)

	project := newTestProject(ctx, t, projectRepo)

	segA := newTestSegment(project.ID, "first", 0)
	segB := newTestSegment(project.ID, "second", 3000)
	require.NoError(t, segmentRepo.Create(ctx, segA))
	require.NoError(t, segmentRepo.Create(ctx, segB))
	require.NoError(t, segmentRepo.MarkRemoved(ctx, project.ID, []string{segB.ID}))

	active, err := segmentRepo.ListActiveByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, segA.ID, active[0].ID)
}

func TestSegmentRepository_MarkRemoved_Atomic(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	segmentRepo := NewSegmentRepository(pool)

	project := newTestProject(ctx, t, projectRepo)
	seg := newTestSegment(project.ID, "only one exists", 0)
	require.NoError(t, segmentRepo.Create(ctx, seg))

	// One real segment plus one that does not exist: nothing may change.
	err := segmentRepo.MarkRemoved(ctx, project.ID, []string{seg.ID, uuid.NewString()})
	require.Error(t, err)

	retrieved, err := segmentRepo.GetByID(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentStatusActive, retrieved.Status)
}

func TestSegmentRepository_GetStates(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	segmentRepo := NewSegmentRepository(pool)

	project := newTestProject(ctx, t, projectRepo)
	workflow := &domain.Workflow{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Name:      "main cut",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, projectRepo.CreateWorkflow(ctx, workflow))

	segA := newTestSegment(project.ID, "a", 0)
	segA.WorkflowID = workflow.ID
	segB := newTestSegment(project.ID, "b", 1000)
	segB.WorkflowID = workflow.ID
	require.NoError(t, segmentRepo.Create(ctx, segA))
	require.NoError(t, segmentRepo.Create(ctx, segB))
	require.NoError(t, segmentRepo.MarkRemoved(ctx, project.ID, []string{segB.ID}))

	states, err := segmentRepo.GetStates(ctx, project.ID, []string{segA.ID, segB.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentStatusActive, states[segA.ID].Status)
	assert.Equal(t, domain.SegmentStatusMarkedForRemoval, states[segB.ID].Status)

	// Workflow attribution survives removal.
	assert.Equal(t, workflow.ID, states[segA.ID].WorkflowID)
	assert.Equal(t, workflow.ID, states[segB.ID].WorkflowID)
}

func TestSegmentRepository_ListByProjectWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	projectRepo := NewProjectRepository(pool)
	segmentRepo := NewSegmentRepository(pool)

	project := newTestProject(ctx, t, projectRepo)
	for i := 0; i < 5; i++ {
		seg := newTestSegment(project.ID, "segment", int64(i*1000))
		seg.CreatedAt = seg.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, segmentRepo.Create(ctx, seg))
	}

	first, err := segmentRepo.ListByProjectWithCursor(ctx, project.ID, nil, 3)
	require.NoError(t, err)
	assert.Len(t, first.Items, 3)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextCursor)

	cursor, err := pagination.DecodeCursor(first.NextCursor)
	require.NoError(t, err)

	second, err := segmentRepo.ListByProjectWithCursor(ctx, project.ID, cursor, 3)
	require.NoError(t, err)
	assert.Len(t, second.Items, 2)
	assert.False(t, second.HasMore)
}
