package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/pagination"
	"github.com/cutroom-ai/cutroom/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// similarNeighborLimit bounds each similarity lookup; group building only
// needs the closest candidates around the threshold.
const similarNeighborLimit = 8

type SegmentRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewSegmentRepository(pool *pgxpool.Pool) *SegmentRepository {
	return &SegmentRepository{db: pool, pool: pool}
}

func NewSegmentRepositoryWithTx(tx pgx.Tx) *SegmentRepository {
	return &SegmentRepository{db: tx}
}

func (r *SegmentRepository) Create(ctx context.Context, s *domain.Segment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO segments (id, project_id, workflow_id, start_ms, transcript, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.ProjectID, nullableString(s.WorkflowID), s.StartMS, s.Transcript, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*domain.Segment, error) {
	var s domain.Segment
	var workflowID *string
	var embedding *pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, project_id, workflow_id, start_ms, transcript, status, embedding, created_at, updated_at
		 FROM segments WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.ProjectID, &workflowID, &s.StartMS, &s.Transcript, &s.Status, &embedding, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSegmentNotFound
		}
		return nil, err
	}
	if workflowID != nil {
		s.WorkflowID = *workflowID
	}
	if embedding != nil {
		s.Embedding = embedding.Slice()
	}
	return &s, nil
}

func (r *SegmentRepository) ListActiveByProject(ctx context.Context, projectID string) ([]*domain.Segment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, workflow_id, start_ms, transcript, status, embedding, created_at, updated_at
		 FROM segments
		 WHERE project_id = $1 AND status = $2
		 ORDER BY start_ms ASC, id ASC`,
		projectID, domain.SegmentStatusActive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSegmentRows(rows)
}

func (r *SegmentRepository) ListByProjectWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*service.SegmentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, project_id, workflow_id, start_ms, transcript, status, embedding, created_at, updated_at
			 FROM segments
			 WHERE project_id = $1 AND (created_at, id) > ($2, $3)
			 ORDER BY created_at ASC, id ASC
			 LIMIT $4`,
			projectID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, project_id, workflow_id, start_ms, transcript, status, embedding, created_at, updated_at
			 FROM segments
			 WHERE project_id = $1
			 ORDER BY created_at ASC, id ASC
			 LIMIT $2`,
			projectID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanSegmentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.CreatedAt)
	}

	return &service.SegmentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *SegmentRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE segments SET embedding = $1, updated_at = $2 WHERE id = $3`,
		pgvector.NewVector(embedding), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSegmentNotFound
	}
	return nil
}

// FindSimilar returns the closest active neighbors of the given segment by
// cosine similarity over the stored embeddings. A segment without an
// embedding cannot be searched; its project's index is considered not built
// yet.
func (r *SegmentRepository) FindSimilar(ctx context.Context, projectID, segmentID string) ([]service.Neighbor, error) {
	var embedding *pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT embedding FROM segments WHERE id = $1 AND project_id = $2`,
		segmentID, projectID,
	).Scan(&embedding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSegmentNotFound
		}
		return nil, err
	}
	if embedding == nil {
		return nil, domain.ErrIndexUnavailable
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS similarity
		 FROM segments
		 WHERE project_id = $2 AND id != $3 AND status = $4 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1 ASC
		 LIMIT $5`,
		*embedding, projectID, segmentID, domain.SegmentStatusActive, similarNeighborLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var neighbors []service.Neighbor
	for rows.Next() {
		var n service.Neighbor
		if err := rows.Scan(&n.SegmentID, &n.Similarity); err != nil {
			return nil, err
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// GetStates looks segments up by id regardless of status, so apply
// bookkeeping keeps workflow attribution for segments already marked for
// removal.
func (r *SegmentRepository) GetStates(ctx context.Context, projectID string, segmentIDs []string) (map[string]service.SegmentState, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, status, workflow_id FROM segments WHERE project_id = $1 AND id = ANY($2)`,
		projectID, segmentIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]service.SegmentState, len(segmentIDs))
	for rows.Next() {
		var id string
		var state service.SegmentState
		var workflowID *string
		if err := rows.Scan(&id, &state.Status, &workflowID); err != nil {
			return nil, err
		}
		if workflowID != nil {
			state.WorkflowID = *workflowID
		}
		states[id] = state
	}
	return states, rows.Err()
}

// MarkRemoved flips the given active segments to marked_for_removal inside a
// single transaction. If any segment is missing or no longer active the whole
// batch rolls back.
func (r *SegmentRepository) MarkRemoved(ctx context.Context, projectID string, segmentIDs []string) error {
	if len(segmentIDs) == 0 {
		return nil
	}
	if r.pool == nil {
		return fmt.Errorf("mark removed requires a pool-backed repository")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE segments SET status = $1, updated_at = $2
		 WHERE project_id = $3 AND id = ANY($4) AND status = $5`,
		domain.SegmentStatusMarkedForRemoval, time.Now().UTC(), projectID, segmentIDs, domain.SegmentStatusActive,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() != int64(len(segmentIDs)) {
		return fmt.Errorf("expected to mark %d segments, matched %d: %w", len(segmentIDs), cmdTag.RowsAffected(), domain.ErrSegmentNotFound)
	}

	return tx.Commit(ctx)
}

func scanSegmentRows(rows pgx.Rows) ([]*domain.Segment, error) {
	var results []*domain.Segment
	for rows.Next() {
		var s domain.Segment
		var workflowID *string
		var embedding *pgvector.Vector
		if err := rows.Scan(&s.ID, &s.ProjectID, &workflowID, &s.StartMS, &s.Transcript, &s.Status, &embedding, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if workflowID != nil {
			s.WorkflowID = *workflowID
		}
		if embedding != nil {
			s.Embedding = embedding.Slice()
		}
		results = append(results, &s)
	}
	return results, rows.Err()
}
