package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// AttemptRepository handles attempt data access. Attempts are keyed by
// their session id: every session owns exactly one row.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetByID retrieves an attempt with its latest stored snapshot.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, session_id, exam_id::text, student_id, status, snapshot,
		        final_score, started_at, updated_at, finished_at
		 FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.SessionID, &a.ExamID, &a.StudentID, &a.Status, &a.Snapshot,
		&a.FinalScore, &a.StartedAt, &a.UpdatedAt, &a.FinishedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Upsert stores the snapshot of an attempt. Older snapshots never replace
// newer ones, a completed attempt stays completed and a session is never
// handed to another student.
func (r *AttemptRepository) Upsert(ctx context.Context, id, examID uuid.UUID, a *model.Attempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempts (id, session_id, exam_id, student_id, status, snapshot, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id) DO UPDATE
		 SET snapshot   = EXCLUDED.snapshot,
		     updated_at = EXCLUDED.updated_at,
		     status     = CASE WHEN attempts.status = $8 THEN attempts.status ELSE EXCLUDED.status END
		 WHERE attempts.updated_at <= EXCLUDED.updated_at
		   AND attempts.student_id = EXCLUDED.student_id`,
		id, a.SessionID, examID, a.StudentID, a.Status, []byte(a.Snapshot), a.UpdatedAt,
		model.AttemptStatusCompleted,
	)
	return err
}

// CompleteBatch marks attempts as completed with their final scores in one
// statement. It returns the ids that matched a row; attempts whose first
// autosave has not landed yet are missing from the result.
func (r *AttemptRepository) CompleteBatch(ctx context.Context, ids []uuid.UUID, scores []float64, finishedAts []time.Time) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE attempts AS a
		SET status = $4,
		    final_score = t.score,
		    finished_at = t.finished_at
		FROM UNNEST(
			$1::uuid[],
			$2::float8[],
			$3::timestamptz[]
		) AS t (id, score, finished_at)
		WHERE a.id = t.id
		RETURNING a.id`,
		ids, scores, finishedAts, model.AttemptStatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := make(map[uuid.UUID]bool, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated[id] = true
	}
	return updated, rows.Err()
}

// ListByExam returns a summary of every attempt on an exam, most recently
// active first.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, session_id, student_id, status,
		        (SELECT COUNT(*) FROM jsonb_object_keys(COALESCE(snapshot->'statuses', '{}'::jsonb)))::int,
		        final_score, updated_at
		 FROM attempts
		 WHERE exam_id = $1
		 ORDER BY updated_at DESC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.AttemptSummary{}
	for rows.Next() {
		var s model.AttemptSummary
		if err := rows.Scan(&s.ID, &s.SessionID, &s.StudentID, &s.Status, &s.Answered, &s.FinalScore, &s.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
