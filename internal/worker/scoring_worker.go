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

const (
	ScoreBatchSize    = 50
	ScoreBatchTimeout = 2 * time.Second
	ScorePollTimeout  = 1 * time.Second
	// ScoreMaxRetries bounds how often a score waits for its attempt row.
	ScoreMaxRetries = 10
)

// AttemptCompleter marks attempts as completed.
type AttemptCompleter interface {
	CompleteBatch(ctx context.Context, ids []uuid.UUID, scores []float64, finishedAts []time.Time) (map[uuid.UUID]bool, error)
}

type ScoringWorker struct {
	repo AttemptCompleter
	rdb  redis.Cmdable
	log  zerolog.Logger
}

func NewScoringWorker(repo AttemptCompleter, rdb redis.Cmdable, log zerolog.Logger) *ScoringWorker {
	return &ScoringWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "scoring_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ScoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ScoringWorker started")

	batch := make([]*model.ScoreJob, 0, ScoreBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ScoreBatchSize || time.Since(lastFlush) >= ScoreBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ScorePollTimeout, config.WorkerKey.PersistScoresQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var job model.ScoreJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &job)
		}
	}
}

// ----------------------------------------------------------------
// Batch update wrapper
// ----------------------------------------------------------------

func (w *ScoringWorker) flushSafe(ctx context.Context, batch []*model.ScoreJob) {
	if len(batch) == 0 {
		return
	}

	jobs := make([]*model.ScoreJob, 0, len(batch))
	ids := make([]uuid.UUID, 0, len(batch))
	scores := make([]float64, 0, len(batch))
	finishedAts := make([]time.Time, 0, len(batch))
	for _, job := range batch {
		id, err := uuid.Parse(job.AttemptID)
		if err != nil {
			w.log.Error().Err(err).Str("attempt_id", job.AttemptID).Msg("Invalid attempt id, dropping score")
			continue
		}
		jobs = append(jobs, job)
		ids = append(ids, id)
		scores = append(scores, job.Score)
		finishedAts = append(finishedAts, job.FinishedAt)
	}
	if len(jobs) == 0 {
		return
	}

	updated, err := w.repo.CompleteBatch(ctx, ids, scores, finishedAts)
	if err != nil {
		w.log.Warn().Err(err).Msg("bulk score update failed, using fallback")

		updated = make(map[uuid.UUID]bool, len(jobs))
		for i, job := range jobs {
			one, err := w.repo.CompleteBatch(ctx, ids[i:i+1], scores[i:i+1], finishedAts[i:i+1])
			if err != nil {
				w.log.Error().Err(err).Str("attempt_id", job.AttemptID).Msg("single score update failed, requeueing")
				w.requeue(ctx, job, false)
				continue
			}
			if !one[ids[i]] {
				w.requeue(ctx, job, true)
				continue
			}
			updated[ids[i]] = true
		}
		w.clearSnapshots(ctx, jobs, updated)
		return
	}

	for i, job := range jobs {
		if !updated[ids[i]] {
			w.requeue(ctx, job, true)
		}
	}

	// After successful score updates → clear the autosave buffers in Redis
	w.clearSnapshots(ctx, jobs, updated)
}

// requeue puts a job back on the queue. Jobs still missing their attempt
// row give up after ScoreMaxRetries.
func (w *ScoringWorker) requeue(ctx context.Context, job *model.ScoreJob, missing bool) {
	if missing {
		job.Retries++
		if job.Retries > ScoreMaxRetries {
			w.log.Error().Str("attempt_id", job.AttemptID).Msg("Attempt never persisted, dropping score")
			return
		}
	}
	raw, _ := json.Marshal(job)
	w.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, raw)
}

// ----------------------------------------------------------------
// BULK Redis DEL for clearing autosaved snapshots
// ----------------------------------------------------------------

func (w *ScoringWorker) clearSnapshots(ctx context.Context, jobs []*model.ScoreJob, updated map[uuid.UUID]bool) {
	keys := make([]string, 0, len(jobs))
	for _, job := range jobs {
		id, _ := uuid.Parse(job.AttemptID)
		if updated[id] {
			keys = append(keys, config.CacheKey.AttemptSnapshotKey(job.AttemptID))
		}
	}
	if len(keys) == 0 {
		return
	}

	pipe := w.rdb.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	_, _ = pipe.Exec(ctx)
}
