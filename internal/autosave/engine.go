// Package autosave persists every snapshot locally and mirrors it to the
// remote attempt store in the background.
package autosave

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-attempt/internal/model"
)

// DefaultPushTimeout bounds one remote push.
const DefaultPushTimeout = 10 * time.Second

// LocalStore is the durable local side. It must succeed for the attempt to be resumable.
type LocalStore interface {
	Save(ctx context.Context, snap *model.DraftSnapshot) error
}

// RemoteStore is the best-effort remote mirror.
type RemoteStore interface {
	AutosaveAttempt(ctx context.Context, snap *model.DraftSnapshot) (attemptID string, err error)
}

// Engine saves snapshots. Local writes are synchronous, remote pushes are
// fire-and-forget full overwrites; the most recent failed push is kept for Reconnect.
type Engine struct {
	local       LocalStore
	remote      RemoteStore
	pushTimeout time.Duration
	log         zerolog.Logger

	wg sync.WaitGroup

	mu         sync.Mutex
	epoch      uint64
	attemptID  string
	seq        uint64
	lastOK     uint64
	pending    *model.DraftSnapshot
	pendingSeq uint64
}

// NewEngine creates a new Engine. remote may be nil for offline-only use.
func NewEngine(local LocalStore, remote RemoteStore, log zerolog.Logger) *Engine {
	return &Engine{
		local:       local,
		remote:      remote,
		pushTimeout: DefaultPushTimeout,
		log:         log.With().Str("component", "autosave").Logger(),
	}
}

// SetPushTimeout overrides DefaultPushTimeout.
func (e *Engine) SetPushTimeout(d time.Duration) {
	if d > 0 {
		e.pushTimeout = d
	}
}

// Save writes snap locally and schedules the remote push.
// Only a local failure is returned.
func (e *Engine) Save(ctx context.Context, snap *model.DraftSnapshot) error {
	e.mu.Lock()
	if snap.RemoteAttemptID == "" {
		snap.RemoteAttemptID = e.attemptID
	}
	e.mu.Unlock()

	if err := e.local.Save(ctx, snap); err != nil {
		return fmt.Errorf("local draft write: %w", err)
	}

	if e.remote == nil {
		return nil
	}

	e.mu.Lock()
	e.seq++
	seq, epoch := e.seq, e.epoch
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.push(context.WithoutCancel(ctx), epoch, seq, snap)
	}()
	return nil
}

// Reconnect retries the most recent failed push, if any. It blocks until
// the push finishes and returns its error.
func (e *Engine) Reconnect(ctx context.Context) error {
	e.mu.Lock()
	pending, seq, epoch := e.pending, e.pendingSeq, e.epoch
	attemptID := e.attemptID
	e.mu.Unlock()

	if pending == nil || e.remote == nil {
		return nil
	}

	snap := *pending
	if snap.RemoteAttemptID == "" {
		snap.RemoteAttemptID = attemptID
	}

	e.log.Info().
		Str("session_id", snap.SessionID).
		Msg("Retrying pending autosave")

	return e.push(ctx, epoch, seq, &snap)
}

// AttemptID returns the remote attempt id learned from the last successful push.
func (e *Engine) AttemptID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attemptID
}

// Pending reports whether a failed push is waiting for Reconnect.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// Reset forgets the remote attempt id and any pending push. Used when a new
// session supersedes the current one.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.attemptID = ""
	e.pending = nil
	e.pendingSeq = 0
	e.lastOK = e.seq
}

// Wait blocks until every in-flight push has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) push(ctx context.Context, epoch, seq uint64, snap *model.DraftSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, e.pushTimeout)
	defer cancel()

	attemptID, err := e.remote.AutosaveAttempt(ctx, snap)

	e.mu.Lock()
	defer e.mu.Unlock()

	if epoch != e.epoch {
		// Superseded by a restart; the outcome belongs to the old session.
		return err
	}

	if err != nil {
		// Keep only the newest snapshot the remote side has not seen.
		if seq > e.lastOK && seq >= e.pendingSeq {
			e.pending = snap
			e.pendingSeq = seq
		}
		e.log.Warn().
			Err(err).
			Str("session_id", snap.SessionID).
			Msg("Remote autosave failed, will retry on reconnect")
		return err
	}

	if seq > e.lastOK {
		e.lastOK = seq
	}
	if e.pending != nil && e.pendingSeq <= seq {
		e.pending = nil
		e.pendingSeq = 0
	}
	if attemptID != "" && e.attemptID != attemptID {
		e.attemptID = attemptID
		e.log.Debug().
			Str("session_id", snap.SessionID).
			Str("attempt_id", attemptID).
			Msg("Remote attempt id assigned")
	}
	return nil
}
