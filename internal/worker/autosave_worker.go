package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// AttemptWriter stores attempt snapshots.
type AttemptWriter interface {
	Upsert(ctx context.Context, id, examID uuid.UUID, a *model.Attempt) error
}

// AutosaveWorker consumes persist_attempts_queue and UPSERTs attempt
// snapshots to PostgreSQL.
type AutosaveWorker struct {
	repo       AttemptWriter
	rdb        redis.Cmdable
	log        zerolog.Logger
	retryDelay time.Duration
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(repo AttemptWriter, rdb redis.Cmdable, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		repo:       repo,
		rdb:        rdb,
		log:        log.With().Str("component", "autosave_worker").Logger(),
		retryDelay: 5 * time.Second,
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAttemptsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// handle persists one queued job. Malformed jobs are logged and dropped.
func (w *AutosaveWorker) handle(ctx context.Context, raw string) error {
	var job model.AttemptJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return nil
	}

	attemptID, err := uuid.Parse(job.AttemptID)
	if err != nil {
		w.log.Error().Err(err).Str("attempt_id", job.AttemptID).Msg("Invalid attempt id, dropping job")
		return nil
	}
	examID, err := uuid.Parse(job.ExamID)
	if err != nil {
		w.log.Error().Err(err).Str("exam_id", job.ExamID).Msg("Invalid exam id, dropping job")
		return nil
	}

	return w.repo.Upsert(ctx, attemptID, examID, &model.Attempt{
		SessionID: job.SessionID,
		StudentID: job.StudentID,
		Status:    job.Status,
		Snapshot:  job.Snapshot,
		UpdatedAt: job.SavedAt,
	})
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAttemptsQueue).Result()
		if err != nil {
			break
		}

		if err := w.handle(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
