package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Fakes ─────────────────────────────────────────────────────────────

type memResults struct {
	rows map[uuid.UUID]*model.StoredResult
	err  error
}

func (m *memResults) Create(_ context.Context, _ uuid.UUID, res *model.StoredResult) error {
	if m.err != nil {
		return m.err
	}
	id := uuid.New()
	res.ID = id.String()
	m.rows[id] = res
	return nil
}

func (m *memResults) GetByID(_ context.Context, id uuid.UUID) (*model.StoredResult, error) {
	res, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return res, nil
}

type staticExams map[string]*model.Exam

func (s staticExams) GetExam(_ context.Context, rawID string) (*model.Exam, error) {
	exam, ok := s[rawID]
	if !ok {
		return nil, ErrExamNotFound
	}
	return exam, nil
}

func twoQuestionExam() *model.Exam {
	return &model.Exam{
		ID:    uuid.NewString(),
		Title: "Pecahan",
		Questions: []model.Question{
			{Text: "1/2 + 1/2", Options: []string{"1", "2"}, CorrectAnswer: "1"},
			{Text: "1/4 + 1/4", Options: []string{"1/2", "1/8"}, CorrectAnswer: "1/2"},
		},
	}
}

func newResultService(exam *model.Exam) (*ResultService, *memResults) {
	repo := &memResults{rows: map[uuid.UUID]*model.StoredResult{}}
	svc := NewResultService(repo, staticExams{exam.ID: exam}, "http://localhost:8080/r", zerolog.Nop())
	return svc, repo
}

func submitReq(exam *model.Exam) *model.SubmitResultRequest {
	return &model.SubmitResultRequest{
		StudentID:             "stu-1",
		ExamID:                exam.ID,
		Score:                 1,
		PerformancePercentage: 50,
		TotalQuestions:        2,
		SessionID:             "sess-1",
	}
}

// ─── Tests ─────────────────────────────────────────────────────────────

func TestResultService_SubmitAndShare(t *testing.T) {
	exam := twoQuestionExam()
	svc, repo := newResultService(exam)
	ctx := context.Background()

	res, err := svc.Submit(ctx, "stu-1", submitReq(exam))
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	assert.Len(t, repo.rows, 1)

	url, err := svc.ShareLink(ctx, "stu-1", &model.ShareLinkRequest{ResultID: res.ID})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/r/"+res.ID, url)

	_, err = svc.ShareLink(ctx, "stu-2", &model.ShareLinkRequest{ResultID: res.ID})
	assert.ErrorIs(t, err, ErrResultForbidden)

	_, err = svc.ShareLink(ctx, "stu-1", &model.ShareLinkRequest{ResultID: res.ID, ExamID: uuid.NewString()})
	assert.ErrorIs(t, err, ErrResultNotFound)

	shared, err := svc.GetShared(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, shared.PerformancePercentage)
}

func TestResultService_SubmitRejects(t *testing.T) {
	exam := twoQuestionExam()
	ctx := context.Background()

	cases := []struct {
		name   string
		caller string
		mutate func(r *model.SubmitResultRequest)
		want   error
	}{
		{"other student", "stu-2", func(*model.SubmitResultRequest) {}, ErrResultForbidden},
		{"score above total", "stu-1", func(r *model.SubmitResultRequest) { r.Score = 3 }, ErrInvalidResult},
		{"total mismatch", "stu-1", func(r *model.SubmitResultRequest) { r.TotalQuestions = 5; r.Score = 1 }, ErrInvalidResult},
		{"unknown exam", "stu-1", func(r *model.SubmitResultRequest) { r.ExamID = "nope" }, ErrExamNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newResultService(exam)
			req := submitReq(exam)
			tc.mutate(req)

			_, err := svc.Submit(ctx, tc.caller, req)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, repo.rows)
		})
	}
}

func TestResultService_SessionOwnedElsewhere(t *testing.T) {
	exam := twoQuestionExam()
	svc, repo := newResultService(exam)
	repo.err = pgx.ErrNoRows

	_, err := svc.Submit(context.Background(), "stu-1", submitReq(exam))
	assert.ErrorIs(t, err, ErrResultForbidden)

	repo.err = errors.New("connection reset")
	_, err = svc.Submit(context.Background(), "stu-1", submitReq(exam))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrResultForbidden)
}

func TestResultService_GetSharedUnknown(t *testing.T) {
	svc, _ := newResultService(twoQuestionExam())

	_, err := svc.GetShared(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, err = svc.GetShared(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrResultNotFound)
}
