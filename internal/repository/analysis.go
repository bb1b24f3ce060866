package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalysisRepository struct {
	db dbtx
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: pool}
}

func NewAnalysisRepositoryWithTx(tx pgx.Tx) *AnalysisRepository {
	return &AnalysisRepository{db: tx}
}

func (r *AnalysisRepository) Get(ctx context.Context, projectID string) (*domain.AnalysisRecord, error) {
	var rec domain.AnalysisRecord
	var taskID pgtype.Text
	var recommendations []byte
	err := r.db.QueryRow(ctx,
		`SELECT project_id, status, version, groups_analyzed, total_pairs, recommendations, analyzed_at, task_id, claimed_at, created_at, updated_at
		 FROM analysis_records WHERE project_id = $1`,
		projectID,
	).Scan(&rec.ProjectID, &rec.Status, &rec.Version, &rec.GroupsAnalyzed, &rec.TotalPairs,
		&recommendations, &rec.AnalyzedAt, &taskID, &rec.ClaimedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAnalysisNotFound
		}
		return nil, err
	}
	if taskID.Valid {
		rec.TaskID = taskID.String
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &rec.Recommendations); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// ClaimRun takes the project's run claim and bumps the version token,
// creating the record on first use. The claim is refused while another run
// holds it. A record with a prior completed result keeps its status and
// result columns untouched, so the old recommendations stay authoritative
// until the superseding run commits; only a record with no result yet shows
// analyzing.
func (r *AnalysisRepository) ClaimRun(ctx context.Context, projectID, taskID string) (int64, error) {
	now := time.Now().UTC()
	var version int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO analysis_records (project_id, status, version, task_id, claimed_at, created_at, updated_at)
		 VALUES ($1, $2, 1, $3, $4, $4, $4)
		 ON CONFLICT (project_id) DO UPDATE
		 SET status = CASE WHEN analysis_records.analyzed_at IS NULL THEN $2::text ELSE analysis_records.status END,
		     version = analysis_records.version + 1,
		     task_id = $3,
		     claimed_at = $4,
		     updated_at = $4
		 WHERE analysis_records.claimed_at IS NULL
		 RETURNING version`,
		projectID, domain.AnalysisStatusAnalyzing, nullableString(taskID), now,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrAnalysisInProgress
		}
		return 0, err
	}
	return version, nil
}

// CompleteRun commits a finished run against the claimed version token. A
// zero-row update means a concurrent run already advanced the version and
// this result must be discarded.
func (r *AnalysisRepository) CompleteRun(ctx context.Context, rec *domain.AnalysisRecord) error {
	recommendations, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return err
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE analysis_records
		 SET status = $1,
		     groups_analyzed = $2,
		     total_pairs = $3,
		     recommendations = $4,
		     analyzed_at = $5,
		     task_id = NULL,
		     claimed_at = NULL,
		     updated_at = $6
		 WHERE project_id = $7 AND version = $8`,
		rec.Status, rec.GroupsAnalyzed, rec.TotalPairs, recommendations, rec.AnalyzedAt,
		time.Now().UTC(), rec.ProjectID, rec.Version,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrStaleAnalysis
	}
	return nil
}

// ReleaseRun reverts a failed claim. The record falls back to completed when
// a prior result exists, otherwise to not_analyzed. A stale version token is
// a no-op: a newer claim already owns the record.
func (r *AnalysisRepository) ReleaseRun(ctx context.Context, projectID string, version int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE analysis_records
		 SET status = CASE WHEN analyzed_at IS NULL THEN $1::text ELSE $2::text END,
		     task_id = NULL,
		     claimed_at = NULL,
		     updated_at = $3
		 WHERE project_id = $4 AND version = $5 AND claimed_at IS NOT NULL`,
		domain.AnalysisStatusNotAnalyzed, domain.AnalysisStatusCompleted,
		time.Now().UTC(), projectID, version,
	)
	return err
}
