package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// Result errors.
var (
	ErrResultNotFound  = errors.New("result not found")
	ErrResultForbidden = errors.New("result belongs to another student")
	ErrInvalidResult   = errors.New("result counts are inconsistent")
)

// ResultStore is the persistence the result service needs.
type ResultStore interface {
	Create(ctx context.Context, examID uuid.UUID, res *model.StoredResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.StoredResult, error)
}

// ResultService records finished attempts and hands out share links.
type ResultService struct {
	resultRepo   ResultStore
	exams        ExamGetter
	shareBaseURL string
	log          zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(resultRepo ResultStore, exams ExamGetter, shareBaseURL string, log zerolog.Logger) *ResultService {
	return &ResultService{
		resultRepo:   resultRepo,
		exams:        exams,
		shareBaseURL: shareBaseURL,
		log:          log.With().Str("component", "result_service").Logger(),
	}
}

// Submit stores the result of the student's session.
func (s *ResultService) Submit(ctx context.Context, studentID string, req *model.SubmitResultRequest) (*model.StoredResult, error) {
	if req.StudentID != studentID {
		return nil, ErrResultForbidden
	}
	if req.Score > req.TotalQuestions {
		return nil, ErrInvalidResult
	}

	exam, err := s.exams.GetExam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}
	if req.TotalQuestions != len(exam.Questions) {
		return nil, ErrInvalidResult
	}
	examID, err := uuid.Parse(exam.ID)
	if err != nil {
		return nil, ErrExamNotFound
	}

	res := &model.StoredResult{SubmitResultRequest: *req}
	res.ExamID = exam.ID
	if err := s.resultRepo.Create(ctx, examID, res); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultForbidden
		}
		return nil, fmt.Errorf("create result: %w", err)
	}

	s.log.Info().
		Str("result_id", res.ID).
		Str("session_id", res.SessionID).
		Str("student_id", studentID).
		Int("percentage", res.PerformancePercentage).
		Msg("Result recorded")
	return res, nil
}

// ShareLink returns the public link of one of the student's results.
func (s *ResultService) ShareLink(ctx context.Context, studentID string, req *model.ShareLinkRequest) (string, error) {
	res, err := s.get(ctx, req.ResultID)
	if err != nil {
		return "", err
	}
	if res.StudentID != studentID {
		return "", ErrResultForbidden
	}
	if req.ExamID != "" && req.ExamID != res.ExamID {
		return "", ErrResultNotFound
	}
	return s.shareBaseURL + "/" + res.ID, nil
}

// GetShared returns a result by its public id.
func (s *ResultService) GetShared(ctx context.Context, rawID string) (*model.StoredResult, error) {
	return s.get(ctx, rawID)
}

func (s *ResultService) get(ctx context.Context, rawID string) (*model.StoredResult, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrResultNotFound
	}
	res, err := s.resultRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return res, nil
}
