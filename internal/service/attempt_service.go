package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/shuffle"
)

// Attempt errors.
var (
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptForbidden = errors.New("attempt belongs to another student")
	ErrInvalidSnapshot  = errors.New("snapshot does not fit the exam")
	ErrInvalidScore     = errors.New("score must be between 0 and 100")
)

// attemptNamespace scopes the name-based UUIDs of attempts.
var attemptNamespace = uuid.MustParse("9b2e7c4a-51d3-4f0e-8a6b-3c1d2e5f7a90")

// AttemptIDFor returns the attempt id of a session. The same session always
// maps to the same attempt and different sessions never share one.
func AttemptIDFor(sessionID string) uuid.UUID {
	return uuid.NewSHA1(attemptNamespace, []byte(sessionID))
}

// AttemptStore is the persistence the attempt service reads from.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
}

// ExamGetter resolves exam papers.
type ExamGetter interface {
	GetExam(ctx context.Context, rawID string) (*model.Exam, error)
}

// AttemptService accepts autosaves and finalizations. Both land in Redis
// right away and reach PostgreSQL through the worker queues.
type AttemptService struct {
	attemptRepo AttemptStore
	exams       ExamGetter
	rdb         redis.Cmdable
	snapshotTTL time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(attemptRepo AttemptStore, exams ExamGetter, rdb redis.Cmdable, snapshotTTL time.Duration, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		exams:       exams,
		rdb:         rdb,
		snapshotTTL: snapshotTTL,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

// Autosave stores the latest snapshot of a session and returns the id of
// its attempt. Repeated autosaves of a session overwrite each other.
func (s *AttemptService) Autosave(ctx context.Context, studentID string, req *model.AutosaveAttemptRequest) (string, error) {
	snap := req.Snapshot
	snap.SessionID = strings.TrimSpace(snap.SessionID)
	if snap.SessionID == "" {
		return "", fmt.Errorf("%w: session id is required", ErrInvalidSnapshot)
	}
	if snap.StudentID != "" && snap.StudentID != studentID {
		return "", ErrAttemptForbidden
	}

	examID := req.ExamID
	if examID == "" {
		examID = snap.ExamID
	}
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return "", err
	}
	if !shuffle.IsPermutation(snap.QuestionOrder, len(exam.Questions)) {
		return "", fmt.Errorf("%w: question order", ErrInvalidSnapshot)
	}

	attemptID := AttemptIDFor(snap.SessionID).String()
	if err := s.claim(ctx, attemptID, studentID); err != nil {
		return "", err
	}

	snap.ExamID = exam.ID
	snap.StudentID = studentID
	snap.RemoteAttemptID = attemptID
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now()
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	status := model.AttemptStatusInProgress
	if snap.Submitted {
		status = model.AttemptStatusCompleted
	}
	job, _ := json.Marshal(model.AttemptJob{
		AttemptID: attemptID,
		SessionID: snap.SessionID,
		ExamID:    exam.ID,
		StudentID: studentID,
		Status:    status,
		Snapshot:  raw,
		SavedAt:   snap.UpdatedAt,
	})
	event, _ := json.Marshal(model.AttemptEvent{
		Type:      model.AttemptEventSaved,
		AttemptID: attemptID,
		SessionID: snap.SessionID,
		StudentID: studentID,
		Answered:  len(snap.Statuses),
		Submitted: snap.Submitted,
		At:        snap.UpdatedAt,
	})

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptSnapshotKey(attemptID), raw, s.snapshotTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, job)
	pipe.Publish(ctx, config.CacheKey.AttemptMonitorChannel(exam.ID), event)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}

	s.log.Debug().
		Str("attempt_id", attemptID).
		Str("session_id", snap.SessionID).
		Str("student_id", studentID).
		Int("answered", len(snap.Statuses)).
		Bool("submitted", snap.Submitted).
		Msg("Attempt autosaved")
	return attemptID, nil
}

// Finalize queues the final score of an attempt.
func (s *AttemptService) Finalize(ctx context.Context, studentID, rawID string, score float64) error {
	if score < 0 || score > 100 {
		return ErrInvalidScore
	}

	attemptID, err := uuid.Parse(rawID)
	if err != nil {
		return ErrAttemptNotFound
	}

	owner, examID, err := s.owner(ctx, attemptID)
	if err != nil {
		return err
	}
	if owner != studentID {
		return ErrAttemptForbidden
	}

	now := s.now()
	job, _ := json.Marshal(model.ScoreJob{
		AttemptID:  attemptID.String(),
		Score:      score,
		FinishedAt: now,
	})

	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistScoresQueue, job)
	if examID != "" {
		event, _ := json.Marshal(model.AttemptEvent{
			Type:      model.AttemptEventFinalized,
			AttemptID: attemptID.String(),
			StudentID: studentID,
			Submitted: true,
			Score:     &score,
			At:        now,
		})
		pipe.Publish(ctx, config.CacheKey.AttemptMonitorChannel(examID), event)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue score: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("student_id", studentID).
		Float64("score", score).
		Msg("Attempt finalized")
	return nil
}

// GetSnapshot returns the latest snapshot stored for one of the student's
// attempts.
func (s *AttemptService) GetSnapshot(ctx context.Context, studentID, rawID string) (*model.DraftSnapshot, error) {
	attemptID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrAttemptNotFound
	}

	var raw []byte
	cached, err := s.rdb.Get(ctx, config.CacheKey.AttemptSnapshotKey(attemptID.String())).Bytes()
	if err == nil {
		raw = cached
	} else {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Snapshot cache lookup failed")
		}
		a, err := s.attemptRepo.GetByID(ctx, attemptID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrAttemptNotFound
			}
			return nil, fmt.Errorf("get attempt: %w", err)
		}
		raw = a.Snapshot
	}

	var snap model.DraftSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.StudentID != studentID {
		return nil, ErrAttemptForbidden
	}
	return &snap, nil
}

// claim records the owner of an attempt on its first autosave and rejects
// autosaves from anyone else.
func (s *AttemptService) claim(ctx context.Context, attemptID, studentID string) error {
	key := config.CacheKey.AttemptOwnerKey(attemptID)
	ok, err := s.rdb.SetNX(ctx, key, studentID, 0).Result()
	if err != nil {
		return fmt.Errorf("claim attempt: %w", err)
	}
	if ok {
		return nil
	}

	owner, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("read attempt owner: %w", err)
	}
	if owner != studentID {
		return ErrAttemptForbidden
	}
	return nil
}

// owner returns the student and exam of an attempt. The exam id is empty
// when only the Redis claim is known.
func (s *AttemptService) owner(ctx context.Context, attemptID uuid.UUID) (string, string, error) {
	a, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err == nil {
		return a.StudentID, a.ExamID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", "", fmt.Errorf("get attempt: %w", err)
	}

	// The first autosave may still be waiting in the queue.
	owner, err := s.rdb.Get(ctx, config.CacheKey.AttemptOwnerKey(attemptID.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", ErrAttemptNotFound
		}
		return "", "", fmt.Errorf("read attempt owner: %w", err)
	}

	examID := ""
	if raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptSnapshotKey(attemptID.String())).Bytes(); err == nil {
		var snap model.DraftSnapshot
		if json.Unmarshal(raw, &snap) == nil {
			examID = snap.ExamID
		}
	}
	return owner, examID, nil
}
