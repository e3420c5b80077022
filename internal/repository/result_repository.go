package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// ResultRepository handles submitted result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create stores a result. Resubmitting the same session overwrites the
// previous row and keeps its id. A session owned by another student yields
// pgx.ErrNoRows.
func (r *ResultRepository) Create(ctx context.Context, examID uuid.UUID, res *model.StoredResult) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO results (session_id, exam_id, student_id, teacher_id, score, performance_percentage, total_questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id) DO UPDATE
		 SET score                  = EXCLUDED.score,
		     performance_percentage = EXCLUDED.performance_percentage,
		     total_questions        = EXCLUDED.total_questions,
		     teacher_id             = EXCLUDED.teacher_id
		 WHERE results.student_id = EXCLUDED.student_id
		 RETURNING id::text, created_at`,
		res.SessionID, examID, res.StudentID, res.TeacherID,
		res.Score, res.PerformancePercentage, res.TotalQuestions,
	).Scan(&res.ID, &res.CreatedAt)
}

// GetByID retrieves a stored result.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.StoredResult, error) {
	res := &model.StoredResult{}
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, session_id, exam_id::text, student_id, teacher_id,
		        score, performance_percentage, total_questions, created_at
		 FROM results WHERE id = $1`, id,
	).Scan(&res.ID, &res.SessionID, &res.ExamID, &res.StudentID, &res.TeacherID,
		&res.Score, &res.PerformancePercentage, &res.TotalQuestions, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}
