package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pushRecorder records RPush calls. Any other command panics.
type pushRecorder struct {
	redis.Cmdable
	pushed map[string][]string
}

func newPushRecorder() *pushRecorder {
	return &pushRecorder{pushed: map[string][]string{}}
}

func (p *pushRecorder) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		switch v := v.(type) {
		case []byte:
			p.pushed[key] = append(p.pushed[key], string(v))
		case string:
			p.pushed[key] = append(p.pushed[key], v)
		}
	}
	return redis.NewIntCmd(ctx)
}

// ─── Autosave worker ───────────────────────────────────────────────────

type upsertCall struct {
	id, examID uuid.UUID
	attempt    *model.Attempt
}

type fakeWriter struct {
	calls []upsertCall
	err   error
}

func (f *fakeWriter) Upsert(_ context.Context, id, examID uuid.UUID, a *model.Attempt) error {
	f.calls = append(f.calls, upsertCall{id, examID, a})
	return f.err
}

func TestAutosaveWorker_Handle(t *testing.T) {
	repo := &fakeWriter{}
	w := NewAutosaveWorker(repo, nil, zerolog.Nop())

	attemptID, examID := uuid.New(), uuid.New()
	saved := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(model.AttemptJob{
		AttemptID: attemptID.String(),
		SessionID: "sess-1",
		ExamID:    examID.String(),
		StudentID: "stu-1",
		Status:    model.AttemptStatusInProgress,
		Snapshot:  json.RawMessage(`{"session_id":"sess-1"}`),
		SavedAt:   saved,
	})
	require.NoError(t, err)

	require.NoError(t, w.handle(context.Background(), string(raw)))
	require.Len(t, repo.calls, 1)
	call := repo.calls[0]
	assert.Equal(t, attemptID, call.id)
	assert.Equal(t, examID, call.examID)
	assert.Equal(t, "sess-1", call.attempt.SessionID)
	assert.Equal(t, "stu-1", call.attempt.StudentID)
	assert.Equal(t, saved, call.attempt.UpdatedAt)
	assert.JSONEq(t, `{"session_id":"sess-1"}`, string(call.attempt.Snapshot))

	repo.err = errors.New("db down")
	assert.Error(t, w.handle(context.Background(), string(raw)), "repository errors are retried")
}

func TestAutosaveWorker_DropsMalformedJobs(t *testing.T) {
	repo := &fakeWriter{}
	w := NewAutosaveWorker(repo, nil, zerolog.Nop())

	for _, raw := range []string{
		`not json`,
		`{"attempt_id":"x","exam_id":"` + uuid.NewString() + `"}`,
		`{"attempt_id":"` + uuid.NewString() + `","exam_id":"x"}`,
	} {
		assert.NoError(t, w.handle(context.Background(), raw))
	}
	assert.Empty(t, repo.calls)
}

// ─── Scoring worker ────────────────────────────────────────────────────

type fakeCompleter struct {
	batches  [][]uuid.UUID
	bulkErr  error
	existing map[uuid.UUID]bool
}

func (f *fakeCompleter) CompleteBatch(_ context.Context, ids []uuid.UUID, _ []float64, _ []time.Time) (map[uuid.UUID]bool, error) {
	f.batches = append(f.batches, ids)
	if f.bulkErr != nil && len(ids) > 1 {
		return nil, f.bulkErr
	}
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		if f.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

func requeued(t *testing.T, rdb *pushRecorder) []model.ScoreJob {
	t.Helper()
	var jobs []model.ScoreJob
	for _, raw := range rdb.pushed[config.WorkerKey.PersistScoresQueue] {
		var job model.ScoreJob
		require.NoError(t, json.Unmarshal([]byte(raw), &job))
		jobs = append(jobs, job)
	}
	return jobs
}

func TestScoringWorker_RequeuesMissingAttempts(t *testing.T) {
	missing := uuid.New()
	repo := &fakeCompleter{existing: map[uuid.UUID]bool{}}
	rdb := newPushRecorder()
	w := NewScoringWorker(repo, rdb, zerolog.Nop())

	w.flushSafe(context.Background(), []*model.ScoreJob{
		{AttemptID: "not-a-uuid", Score: 10},
		{AttemptID: missing.String(), Score: 80, Retries: 2},
	})

	require.Len(t, repo.batches, 1)
	assert.Equal(t, []uuid.UUID{missing}, repo.batches[0], "invalid ids never reach the repository")

	jobs := requeued(t, rdb)
	require.Len(t, jobs, 1)
	assert.Equal(t, missing.String(), jobs[0].AttemptID)
	assert.Equal(t, 3, jobs[0].Retries)
}

func TestScoringWorker_GivesUpAfterMaxRetries(t *testing.T) {
	repo := &fakeCompleter{existing: map[uuid.UUID]bool{}}
	rdb := newPushRecorder()
	w := NewScoringWorker(repo, rdb, zerolog.Nop())

	w.flushSafe(context.Background(), []*model.ScoreJob{
		{AttemptID: uuid.NewString(), Score: 80, Retries: ScoreMaxRetries},
	})

	assert.Empty(t, requeued(t, rdb))
}

func TestScoringWorker_FallsBackToSingleUpdates(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	repo := &fakeCompleter{bulkErr: errors.New("deadlock"), existing: map[uuid.UUID]bool{}}
	rdb := newPushRecorder()
	w := NewScoringWorker(repo, rdb, zerolog.Nop())

	w.flushSafe(context.Background(), []*model.ScoreJob{
		{AttemptID: a.String(), Score: 50},
		{AttemptID: b.String(), Score: 70},
	})

	require.Len(t, repo.batches, 3)
	assert.Equal(t, []uuid.UUID{a}, repo.batches[1])
	assert.Equal(t, []uuid.UUID{b}, repo.batches[2])
	assert.Len(t, requeued(t, rdb), 2)
}

func TestScoringWorker_EmptyBatch(t *testing.T) {
	repo := &fakeCompleter{}
	w := NewScoringWorker(repo, nil, zerolog.Nop())

	w.flushSafe(context.Background(), nil)
	assert.Empty(t, repo.batches)
}
