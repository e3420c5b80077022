package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// Domain Errors
var (
	ErrExamNotFound = errors.New("exam not found")
	ErrNoQuestions  = errors.New("exam has no questions")
)

// ExamStore is the persistence the exam service needs.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	Create(ctx context.Context, e *model.Exam) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ExamService serves exam papers from a Redis read-through cache in front
// of PostgreSQL.
type ExamService struct {
	examRepo ExamStore
	rdb      redis.Cmdable
	ttl      time.Duration
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo ExamStore, rdb redis.Cmdable, ttl time.Duration, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		ttl:      ttl,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExam returns the exam paper. Ids that are not UUIDs are reported as
// not found.
func (s *ExamService) GetExam(ctx context.Context, rawID string) (*model.Exam, error) {
	examID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrExamNotFound
	}

	key := config.CacheKey.ExamPayloadKey(examID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var exam model.Exam
		if err := json.Unmarshal(data, &exam); err == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Cached exam payload unreadable, reloading")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Exam cache lookup failed")
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if err := s.cache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", exam.ID).Msg("Failed to cache exam payload")
	}
	return exam, nil
}

// Create stores a new exam and warms its cache entry.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	if len(req.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	exam := &model.Exam{
		Title:           req.Title,
		Subject:         req.Subject,
		Grade:           req.Grade,
		Term:            req.Term,
		TeacherID:       req.TeacherID,
		Duration:        req.Duration,
		QuestionSeconds: req.QuestionSeconds,
		Questions:       make([]model.Question, len(req.Questions)),
	}
	for i, q := range req.Questions {
		exam.Questions[i] = q.ToQuestion()
	}

	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	if err := s.cache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", exam.ID).Msg("Failed to cache exam payload")
	}

	s.log.Info().
		Str("exam_id", exam.ID).
		Int("questions", len(exam.Questions)).
		Msg("Exam created")
	return exam, nil
}

// PrewarmAllCaches loads every exam into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.examRepo.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	if len(ids) == 0 {
		s.log.Info().Msg("No exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(ids)).Msg("Prewarming exams...")

	warmed := 0
	for _, id := range ids {
		exam, err := s.examRepo.GetByID(ctx, id)
		if err == nil {
			err = s.cache(ctx, exam)
		}
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", id.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(ids)).
		Msg("Prewarming complete")
	return nil
}

func (s *ExamService) cache(ctx context.Context, exam *model.Exam) error {
	payload, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID), payload, s.ttl).Err()
}
