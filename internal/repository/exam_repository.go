package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam with its questions in paper order.
// Returns pgx.ErrNoRows when the exam does not exist.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, title, subject, grade, term, teacher_id, duration_minutes, question_seconds
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Subject, &e.Grade, &e.Term, &e.TeacherID, &e.Duration, &e.QuestionSeconds)
	if err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	e.Questions = questions
	return e, nil
}

func (r *ExamRepository) listQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, question_text, options, correct_answer, topic, lesson, unit, chapter, difficulty
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var (
			q       model.Question
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &options, &q.CorrectAnswer,
			&q.Topic, &q.Lesson, &q.Unit, &q.Chapter, &q.Difficulty); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts an exam and its questions in one transaction. The generated
// ids are written back into e.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var examID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO exams (title, subject, grade, term, teacher_id, duration_minutes, question_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		e.Title, e.Subject, e.Grade, e.Term, e.TeacherID, e.Duration, e.QuestionSeconds,
	).Scan(&examID)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	e.ID = examID.String()

	batch := &pgx.Batch{}
	for i, q := range e.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options of question %d: %w", i, err)
		}
		batch.Queue(
			`INSERT INTO questions (exam_id, order_num, question_text, options, correct_answer,
			                        topic, lesson, unit, chapter, difficulty)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id::text`,
			examID, i, q.Text, options, q.CorrectAnswer, q.Topic, q.Lesson, q.Unit, q.Chapter, q.Difficulty,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range e.Questions {
		if err := results.QueryRow().Scan(&e.Questions[i].ID); err != nil {
			results.Close()
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// ListIDs returns the ids of all exams, newest first.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM exams ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
