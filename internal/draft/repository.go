// Package draft stores attempt snapshots and the per-student session pointer
// in a key-value store.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/kvstore"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// ErrCorruptDraft is returned when a stored snapshot cannot be decoded.
var ErrCorruptDraft = errors.New("corrupt draft snapshot")

// ErrMissingKey is returned when a snapshot lacks the ids that address it.
var ErrMissingKey = errors.New("snapshot is missing exam, student or session id")

// Repository reads and writes drafts.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates a new Repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Pointer returns the current session id of a student on an exam, or "" when none is recorded.
func (r *Repository) Pointer(ctx context.Context, examID, studentID string) (string, error) {
	v, err := r.store.Get(ctx, config.CacheKey.DraftPointerKey(examID, studentID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session pointer: %w", err)
	}
	return strings.TrimSpace(string(v)), nil
}

// SetPointer makes sessionID the current session of a student on an exam.
func (r *Repository) SetPointer(ctx context.Context, examID, studentID, sessionID string) error {
	if err := r.store.Set(ctx, config.CacheKey.DraftPointerKey(examID, studentID), []byte(sessionID)); err != nil {
		return fmt.Errorf("write session pointer: %w", err)
	}
	return nil
}

// Load returns the snapshot of a session, or nil when none is stored.
func (r *Repository) Load(ctx context.Context, examID, studentID, sessionID string) (*model.DraftSnapshot, error) {
	v, err := r.store.Get(ctx, config.CacheKey.DraftSessionKey(examID, studentID, sessionID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}

	var snap model.DraftSnapshot
	if err := json.Unmarshal(v, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDraft, err)
	}
	if snap.SessionID != "" && snap.SessionID != sessionID {
		return nil, fmt.Errorf("%w: stored under %s but claims %s", ErrCorruptDraft, sessionID, snap.SessionID)
	}
	snap.ExamID = examID
	snap.StudentID = studentID
	snap.SessionID = sessionID
	return &snap, nil
}

// Save overwrites the stored snapshot of its session.
func (r *Repository) Save(ctx context.Context, snap *model.DraftSnapshot) error {
	if snap.ExamID == "" || snap.StudentID == "" || snap.SessionID == "" {
		return ErrMissingKey
	}

	v, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := r.store.Set(ctx, config.CacheKey.DraftSessionKey(snap.ExamID, snap.StudentID, snap.SessionID), v); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}

// Delete removes the snapshot of a session.
func (r *Repository) Delete(ctx context.Context, examID, studentID, sessionID string) error {
	if err := r.store.Delete(ctx, config.CacheKey.DraftSessionKey(examID, studentID, sessionID)); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
