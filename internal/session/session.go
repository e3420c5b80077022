package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-attempt/internal/attempt"
	"github.com/stemsi/exstem-attempt/internal/autosave"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/scoring"
	"github.com/stemsi/exstem-attempt/internal/shuffle"
	"github.com/stemsi/exstem-attempt/internal/timer"
)

// Session is one open attempt. User actions and timer expiry are serialized
// by a single mutex, so the first of them to reach a position wins.
type Session struct {
	mgr *Manager
	log zerolog.Logger

	mu      sync.Mutex
	state   *attempt.State
	timer   *timer.Timer
	saver   *autosave.Engine
	resumed bool
}

// View is what the student sees at a given moment.
type View struct {
	ExamID      string
	SessionID   string
	Position    int
	Total       int
	Question    model.Question
	Record      model.AnswerRecord
	Remaining   int
	Counters    attempt.Counters
	CanSubmit   bool
	ConfirmOpen bool
	Finished    bool
	Resumed     bool
	Result      *model.Result
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	st := s.state
	q, _ := st.Question(st.Current)
	r, _ := st.Record(st.Current)

	v := View{
		ExamID:      st.ExamID,
		SessionID:   st.SessionID,
		Position:    st.Current,
		Total:       st.Total(),
		Question:    q,
		Record:      r,
		Remaining:   s.timer.Remaining(),
		Counters:    st.Counters(),
		CanSubmit:   st.CanSubmit(),
		ConfirmOpen: st.ConfirmOpen,
		Finished:    st.Submitted,
		Resumed:     s.resumed,
	}
	if st.Result != nil {
		result := *st.Result
		v.Result = &result
	}
	return v
}

// SessionID returns the id of the current session.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SessionID
}

// Order returns the question order of the current session.
func (s *Session) Order() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.state.Order...)
}

// Answer records the selected option for the current position. changed is
// false when the position already had a terminal status.
func (s *Session) Answer(ctx context.Context, selected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.state.Current
	changed, err := s.state.Apply(attempt.AnswerSubmitted{
		Position:  pos,
		Selected:  selected,
		Remaining: s.timer.Remaining(),
	})
	if err != nil || !changed {
		return false, err
	}
	s.timer.Stop()

	s.log.Debug().
		Str("session_id", s.state.SessionID).
		Int("position", pos).
		Str("status", string(s.state.Status(pos))).
		Msg("Answer recorded")
	return true, s.persist(ctx)
}

// Skip marks the current position as skipped.
func (s *Session) Skip(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.state.Current
	changed, err := s.state.Apply(attempt.Skipped{
		Position:  pos,
		Remaining: s.timer.Remaining(),
	})
	if err != nil || !changed {
		return false, err
	}
	s.timer.Stop()

	s.log.Debug().
		Str("session_id", s.state.SessionID).
		Int("position", pos).
		Msg("Question skipped")
	return true, s.persist(ctx)
}

// Next advances to the following position, or opens the submit
// confirmation on the last one. It fails with attempt.ErrNotTerminal while
// the current position is still open.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.state.Apply(attempt.Advanced{})
	if err != nil || !changed {
		return err
	}
	s.enterPosition()
	return s.persist(ctx)
}

// CancelConfirm closes the submit confirmation without submitting.
func (s *Session) CancelConfirm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.state.Apply(attempt.ConfirmClosed{})
}

// Submit scores the attempt and finishes it. The finished snapshot is
// stored before any remote call; remote failures are logged and never
// returned, so the result is always available to show.
func (s *Session) Submit(ctx context.Context) (*model.Result, error) {
	s.mu.Lock()
	if s.state.Submitted {
		result := *s.state.Result
		s.mu.Unlock()
		return &result, nil
	}
	if !s.state.CanSubmit() {
		s.mu.Unlock()
		return nil, attempt.ErrIncomplete
	}

	s.timer.Stop()

	snap := s.state.Snapshot(s.mgr.cfg.Now())
	result := scoring.Compute(s.state.Exam, snap.QuestionOrder, snap.Answers, snap.Statuses)
	confirmOpen := s.state.ConfirmOpen
	if _, err := s.state.Apply(attempt.Submitted{Result: result}); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		// The draft still says in progress, so the session must too.
		s.state.Submitted = false
		s.state.Result = nil
		s.state.ConfirmOpen = confirmOpen
		s.mu.Unlock()
		return nil, err
	}

	st := s.state
	req := model.SubmitResultRequest{
		StudentID:             st.StudentID,
		ExamID:                st.ExamID,
		TeacherID:             s.teacherID(),
		Score:                 result.CorrectCount,
		PerformancePercentage: result.Percentage,
		TotalQuestions:        result.Total,
		SessionID:             st.SessionID,
	}
	sessionID := st.SessionID
	knownAttemptID := st.RemoteAttemptID
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", sessionID).
		Int("percentage", result.Percentage).
		Int("correct", result.CorrectCount).
		Int("total", result.Total).
		Msg("Attempt submitted")

	resultID, shareURL := s.publish(ctx, req, knownAttemptID, float64(result.Percentage))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.SessionID == sessionID && s.state.Result != nil {
		s.state.Result.ResultID = resultID
		s.state.Result.ShareURL = shareURL
		result = *s.state.Result
	}
	return &result, nil
}

// publish runs the best-effort remote calls that follow a submit.
// knownAttemptID is the id restored from the draft, used when no push of
// this process has succeeded.
func (s *Session) publish(ctx context.Context, req model.SubmitResultRequest, knownAttemptID string, score float64) (resultID, shareURL string) {
	client := s.mgr.client

	// The finished snapshot push must settle before the attempt id is known.
	s.saver.Wait()

	attemptID := s.saver.AttemptID()
	if attemptID == "" {
		attemptID = knownAttemptID
	}
	if attemptID != "" {
		if err := client.FinalizeAttempt(ctx, attemptID, score); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Finalize attempt failed")
		}
	} else {
		s.log.Warn().Msg("No remote attempt id, skipping finalize")
	}

	resultID, err := client.SubmitResult(ctx, req)
	if err != nil {
		s.log.Warn().Err(err).Msg("Result submission failed")
		return "", ""
	}

	shareURL, err = client.CreateShareLink(ctx, model.ShareLinkRequest{ResultID: resultID, ExamID: req.ExamID})
	if err != nil {
		s.log.Warn().Err(err).Str("result_id", resultID).Msg("Share link creation failed")
		return resultID, ""
	}
	return resultID, shareURL
}

// Restart supersedes a finished session with a fresh one: the pointer moves
// to a new session id, the layout is derived from the new seed and the old
// draft is deleted. If the pointer cannot be written the finished session
// stays as it was.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Submitted {
		return attempt.ErrNotFinished
	}

	st := s.state
	oldSessionID := st.SessionID
	newSessionID := s.mgr.cfg.NewSessionID()
	order, options := Layout(st.Exam, st.StudentID, newSessionID)

	if !shuffle.IsPermutation(order, len(st.Exam.Questions)) {
		return attempt.ErrInvalidOrder
	}
	if err := s.mgr.drafts.SetPointer(ctx, st.ExamID, st.StudentID, newSessionID); err != nil {
		return fmt.Errorf("persist session pointer: %w", err)
	}

	if _, err := st.Apply(attempt.Retried{SessionID: newSessionID, Order: order, Options: options}); err != nil {
		return err
	}
	s.saver.Reset()
	s.resumed = false

	// An undeleted draft is unreachable once the pointer has moved.
	if err := s.mgr.drafts.Delete(ctx, st.ExamID, st.StudentID, oldSessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", oldSessionID).Msg("Previous draft not deleted")
	}

	s.log.Info().
		Str("session_id", newSessionID).
		Str("previous_session_id", oldSessionID).
		Msg("Attempt restarted")

	s.enterPosition()
	return nil
}

// Reconnect retries the last autosave that failed to reach the remote store.
func (s *Session) Reconnect(ctx context.Context) {
	if err := s.saver.Reconnect(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Reconnect autosave failed")
	}
}

// PendingSync reports whether an autosave is waiting for Reconnect.
func (s *Session) PendingSync() bool {
	return s.saver.Pending()
}

// Close stops the timer and waits for in-flight autosaves.
func (s *Session) Close() {
	s.mu.Lock()
	s.timer.Stop()
	s.mu.Unlock()
	s.saver.Wait()
}

// enterPosition cancels the running countdown and starts one for the
// current position if it is still open. Callers hold s.mu.
func (s *Session) enterPosition() {
	s.timer.Stop()

	st := s.state
	if st.Submitted || st.ConfirmOpen || st.Status(st.Current).Terminal() {
		return
	}

	pos, sessionID := st.Current, st.SessionID
	hooks := s.mgr.cfg.Hooks

	var onTick func(int)
	if hooks.OnTick != nil {
		onTick = func(remaining int) { hooks.OnTick(pos, remaining) }
	}
	s.timer.Start(st.QuestionSeconds, onTick, func() { s.expire(pos, sessionID) })
}

// expire applies the timeout of a position unless a user action got there first.
func (s *Session) expire(pos int, sessionID string) {
	s.mu.Lock()
	if s.state.SessionID != sessionID || s.state.Current != pos {
		s.mu.Unlock()
		return
	}
	changed, err := s.state.Apply(attempt.TimedOut{Position: pos})
	if err != nil || !changed {
		s.mu.Unlock()
		return
	}
	s.timer.Stop()
	if err := s.persist(context.Background()); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Int("position", pos).Msg("Failed to save timeout")
	}
	s.mu.Unlock()

	s.log.Debug().Str("session_id", sessionID).Int("position", pos).Msg("Question timed out")
	if h := s.mgr.cfg.Hooks.OnTimeout; h != nil {
		h(pos)
	}
}

// persist hands the current snapshot to the autosave engine. Callers hold s.mu.
func (s *Session) persist(ctx context.Context) error {
	if id := s.saver.AttemptID(); id != "" {
		s.state.RemoteAttemptID = id
	}
	now := s.mgr.cfg.Now()
	s.state.UpdatedAt = now

	if err := s.saver.Save(ctx, s.state.Snapshot(now)); err != nil {
		s.log.Error().Err(err).Str("session_id", s.state.SessionID).Msg("Draft save failed")
		return err
	}
	return nil
}

func (s *Session) teacherID() string {
	if s.state.Exam.TeacherID != "" {
		return s.state.Exam.TeacherID
	}
	return s.mgr.cfg.TeacherID
}
