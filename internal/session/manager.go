// Package session opens attempt sessions and drives them: it binds the
// attempt state to the question timer, the autosave engine and the remote
// services.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-attempt/internal/attempt"
	"github.com/stemsi/exstem-attempt/internal/autosave"
	"github.com/stemsi/exstem-attempt/internal/draft"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/remote"
	"github.com/stemsi/exstem-attempt/internal/scoring"
	"github.com/stemsi/exstem-attempt/internal/shuffle"
	"github.com/stemsi/exstem-attempt/internal/timer"
)

// Domain errors.
var (
	ErrMissingIdentity = errors.New("exam id and student id are required")
	ErrLoadExam        = errors.New("failed to load exam")
)

// Hooks receive timer events. They run on the timer goroutine.
type Hooks struct {
	OnTick    func(position, remaining int)
	OnTimeout func(position int)
}

// Config tunes the sessions a Manager opens.
type Config struct {
	// QuestionSeconds applies when the exam does not set its own.
	QuestionSeconds int
	TickInterval    time.Duration
	PushTimeout     time.Duration
	TeacherID       string
	Hooks           Hooks

	// NewSessionID defaults to random UUIDs.
	NewSessionID func() string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager opens sessions for (exam, student) pairs.
type Manager struct {
	client remote.Client
	drafts *draft.Repository
	cfg    Config
	log    zerolog.Logger
}

// NewManager creates a new Manager.
func NewManager(client remote.Client, drafts *draft.Repository, cfg Config, log zerolog.Logger) *Manager {
	if cfg.QuestionSeconds <= 0 {
		cfg.QuestionSeconds = attempt.DefaultQuestionSeconds
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		client: client,
		drafts: drafts,
		cfg:    cfg,
		log:    log.With().Str("component", "session").Logger(),
	}
}

// Open resumes the student's current session on the exam when its draft
// carries progress, and starts a fresh one otherwise.
func (m *Manager) Open(ctx context.Context, examID, studentID string) (*Session, error) {
	examID = strings.TrimSpace(examID)
	studentID = strings.TrimSpace(studentID)
	if examID == "" || studentID == "" {
		return nil, ErrMissingIdentity
	}

	exam, err := m.client.FetchExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadExam, err)
	}
	if len(exam.Questions) == 0 {
		return nil, fmt.Errorf("%w: exam %s has no questions", ErrLoadExam, examID)
	}
	if exam.ID == "" {
		exam.ID = examID
	}

	log := m.log.With().
		Str("exam_id", examID).
		Str("student_id", studentID).
		Logger()

	questionSeconds := m.cfg.QuestionSeconds
	if exam.QuestionSeconds > 0 {
		questionSeconds = exam.QuestionSeconds
	}

	snap := m.loadCurrent(ctx, log, examID, studentID)

	var (
		state   *attempt.State
		resumed bool
	)
	if snap.Meaningful() {
		state, err = m.resume(log, exam, studentID, snap, questionSeconds)
		if err != nil {
			return nil, err
		}
		resumed = true
	} else {
		sessionID := m.cfg.NewSessionID()
		order, options := Layout(exam, studentID, sessionID)
		state, err = attempt.New(exam, studentID, sessionID, order, options, questionSeconds)
		if err != nil {
			return nil, err
		}
		if err := m.drafts.SetPointer(ctx, examID, studentID, sessionID); err != nil {
			return nil, fmt.Errorf("persist session pointer: %w", err)
		}
	}

	saver := autosave.NewEngine(m.drafts, m.client, m.log)
	saver.SetPushTimeout(m.cfg.PushTimeout)

	s := &Session{
		mgr:     m,
		log:     log,
		state:   state,
		timer:   timer.New(m.cfg.TickInterval),
		saver:   saver,
		resumed: resumed,
	}

	s.log.Info().
		Str("session_id", state.SessionID).
		Bool("resumed", resumed).
		Bool("finished", state.Submitted).
		Int("position", state.Current).
		Msg("Attempt session opened")

	s.mu.Lock()
	s.enterPosition()
	s.mu.Unlock()

	return s, nil
}

// loadCurrent returns the draft the session pointer refers to. Missing or
// unreadable drafts yield nil.
func (m *Manager) loadCurrent(ctx context.Context, log zerolog.Logger, examID, studentID string) *model.DraftSnapshot {
	sessionID, err := m.drafts.Pointer(ctx, examID, studentID)
	if err != nil {
		log.Warn().Err(err).Msg("Session pointer unreadable, starting fresh")
		return nil
	}
	if sessionID == "" {
		return nil
	}

	snap, err := m.drafts.Load(ctx, examID, studentID, sessionID)
	if err != nil {
		if errors.Is(err, draft.ErrCorruptDraft) {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Discarding corrupt draft")
		} else {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Draft unreadable, starting fresh")
		}
		return nil
	}
	return snap
}

func (m *Manager) resume(log zerolog.Logger, exam *model.Exam, studentID string, snap *model.DraftSnapshot, questionSeconds int) (*attempt.State, error) {
	order, options := snap.QuestionOrder, snap.ShuffledOptions
	if !shuffle.IsPermutation(order, len(exam.Questions)) {
		log.Warn().
			Str("session_id", snap.SessionID).
			Int("stored_len", len(order)).
			Int("exam_len", len(exam.Questions)).
			Msg("Stored question order does not fit the exam, regenerating")
		order, options = Layout(exam, studentID, snap.SessionID)
	} else if !optionsFit(exam, order, options) {
		_, options = Layout(exam, studentID, snap.SessionID)
	}

	state, err := attempt.New(exam, studentID, snap.SessionID, order, options, questionSeconds)
	if err != nil {
		return nil, err
	}
	state.Restore(snap)

	if state.Submitted && state.Result == nil {
		s := state.Snapshot(m.cfg.Now())
		result := scoring.Compute(exam, s.QuestionOrder, s.Answers, s.Statuses)
		state.Result = &result
	}
	return state, nil
}

// Layout derives the question order and the per-position option order of a
// session from its seed.
func Layout(exam *model.Exam, studentID, sessionID string) ([]int, map[int][]string) {
	order := shuffle.Permutation(len(exam.Questions), shuffle.QuestionOrderSeed(exam.ID, studentID, sessionID))
	options := make(map[int][]string, len(order))
	for pos, idx := range order {
		options[pos] = shuffle.Shuffle(exam.Questions[idx].Options, shuffle.OptionSeed(exam.ID, studentID, sessionID, idx))
	}
	return order, options
}

func optionsFit(exam *model.Exam, order []int, options map[int][]string) bool {
	for pos, idx := range order {
		if len(options[pos]) != len(exam.Questions[idx].Options) {
			return false
		}
	}
	return true
}
