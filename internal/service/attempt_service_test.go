package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noAttempts struct{}

func (noAttempts) GetByID(context.Context, uuid.UUID) (*model.Attempt, error) {
	return nil, pgx.ErrNoRows
}

func autosaveReq(exam *model.Exam, sessionID string, order []int) *model.AutosaveAttemptRequest {
	return &model.AutosaveAttemptRequest{
		ExamID: exam.ID,
		Snapshot: model.DraftSnapshot{
			SessionID:     sessionID,
			QuestionOrder: order,
			Statuses:      map[int]model.Status{0: model.StatusCorrect},
		},
	}
}

func TestAttemptService_RejectsBeforeStoring(t *testing.T) {
	exam := twoQuestionExam()
	// A nil client panics if any of these cases reach Redis.
	svc := NewAttemptService(noAttempts{}, staticExams{exam.ID: exam}, nil, time.Hour, zerolog.Nop())
	ctx := context.Background()

	t.Run("blank session", func(t *testing.T) {
		_, err := svc.Autosave(ctx, "stu-1", autosaveReq(exam, "  ", []int{0, 1}))
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})

	t.Run("snapshot of another student", func(t *testing.T) {
		req := autosaveReq(exam, "sess-1", []int{0, 1})
		req.Snapshot.StudentID = "stu-2"
		_, err := svc.Autosave(ctx, "stu-1", req)
		assert.ErrorIs(t, err, ErrAttemptForbidden)
	})

	t.Run("unknown exam", func(t *testing.T) {
		req := autosaveReq(exam, "sess-1", []int{0, 1})
		req.ExamID = "missing"
		_, err := svc.Autosave(ctx, "stu-1", req)
		assert.ErrorIs(t, err, ErrExamNotFound)
	})

	for name, order := range map[string][]int{
		"short order":     {0},
		"repeated index":  {0, 0},
		"index too large": {0, 2},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Autosave(ctx, "stu-1", autosaveReq(exam, "sess-1", order))
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}

	t.Run("score out of range", func(t *testing.T) {
		assert.ErrorIs(t, svc.Finalize(ctx, "stu-1", uuid.NewString(), 100.5), ErrInvalidScore)
		assert.ErrorIs(t, svc.Finalize(ctx, "stu-1", uuid.NewString(), -1), ErrInvalidScore)
	})

	t.Run("malformed attempt id", func(t *testing.T) {
		assert.ErrorIs(t, svc.Finalize(ctx, "stu-1", "abc", 50), ErrAttemptNotFound)
		_, err := svc.GetSnapshot(ctx, "stu-1", "abc")
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})
}

// TEST_REDIS_URL should point at a scratch database; the test leaves jobs
// on the persist queues.
func TestAttemptService_RedisFlow(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	exam := twoQuestionExam()
	svc := NewAttemptService(noAttempts{}, staticExams{exam.ID: exam}, rdb, time.Hour, zerolog.Nop())

	sessionID := "sess-" + uuid.NewString()
	attemptID, err := svc.Autosave(ctx, "stu-1", autosaveReq(exam, sessionID, []int{1, 0}))
	require.NoError(t, err)
	assert.Equal(t, AttemptIDFor(sessionID).String(), attemptID)
	t.Cleanup(func() {
		rdb.Del(ctx,
			config.CacheKey.AttemptSnapshotKey(attemptID),
			config.CacheKey.AttemptOwnerKey(attemptID))
	})

	again, err := svc.Autosave(ctx, "stu-1", autosaveReq(exam, sessionID, []int{1, 0}))
	require.NoError(t, err)
	assert.Equal(t, attemptID, again, "autosaves of a session share one attempt")

	_, err = svc.Autosave(ctx, "stu-2", autosaveReq(exam, sessionID, []int{1, 0}))
	assert.ErrorIs(t, err, ErrAttemptForbidden)

	snap, err := svc.GetSnapshot(ctx, "stu-1", attemptID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, snap.QuestionOrder)
	assert.Equal(t, exam.ID, snap.ExamID)
	assert.Equal(t, attemptID, snap.RemoteAttemptID)

	_, err = svc.GetSnapshot(ctx, "stu-2", attemptID)
	assert.ErrorIs(t, err, ErrAttemptForbidden)

	assert.ErrorIs(t, svc.Finalize(ctx, "stu-2", attemptID, 50), ErrAttemptForbidden)
	assert.NoError(t, svc.Finalize(ctx, "stu-1", attemptID, 50))

	assert.ErrorIs(t, svc.Finalize(ctx, "stu-1", uuid.NewString(), 50), ErrAttemptNotFound)
}
