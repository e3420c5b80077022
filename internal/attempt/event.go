package attempt

import (
	"fmt"

	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/shuffle"
)

// Event is a state transition request.
type Event interface {
	event()
}

// AnswerSubmitted records the option the student picked. Remaining is the
// countdown value at the moment of the answer.
type AnswerSubmitted struct {
	Position  int
	Selected  string
	Remaining int
}

// Skipped records an explicit skip.
type Skipped struct {
	Position  int
	Remaining int
}

// TimedOut records an expired countdown.
type TimedOut struct {
	Position int
}

// Advanced moves to the next position, or opens the submit confirmation on the last one.
type Advanced struct{}

// ConfirmClosed dismisses the submit confirmation without submitting.
type ConfirmClosed struct{}

// Submitted finishes the attempt with a computed result.
type Submitted struct {
	Result model.Result
}

// Retried replaces a finished attempt with a fresh session layout.
type Retried struct {
	SessionID string
	Order     []int
	Options   map[int][]string
}

func (AnswerSubmitted) event() {}
func (Skipped) event() {}
func (TimedOut) event() {}
func (Advanced) event() {}
func (ConfirmClosed) event() {}
func (Submitted) event() {}
func (Retried) event() {}

// Apply runs the transition for ev. changed is false when the event was a
// no-op, e.g. a second write to a position that already has a terminal status.
func (s *State) Apply(ev Event) (changed bool, err error) {
	switch e := ev.(type) {
	case AnswerSubmitted:
		return s.applyAnswer(e)
	case Skipped:
		return s.applyTerminal(e.Position, model.StatusSkipped, s.timeSpent(e.Remaining))
	case TimedOut:
		return s.applyTerminal(e.Position, model.StatusTimeout, s.QuestionSeconds)
	case Advanced:
		return s.applyAdvance()
	case ConfirmClosed:
		if !s.ConfirmOpen {
			return false, nil
		}
		s.ConfirmOpen = false
		return true, nil
	case Submitted:
		return s.applySubmit(e)
	case Retried:
		return s.applyRetry(e)
	default:
		return false, fmt.Errorf("unknown event %T", ev)
	}
}

func (s *State) applyAnswer(e AnswerSubmitted) (bool, error) {
	if err := s.checkPosition(e.Position); err != nil {
		return false, err
	}
	if s.Submitted || s.Records[e.Position].Status.Terminal() {
		return false, nil
	}

	q := s.Exam.Questions[s.Order[e.Position]]
	correct := e.Selected == q.CorrectAnswer

	status := model.StatusWrong
	if correct {
		status = model.StatusCorrect
	}

	selected := e.Selected
	s.Records[e.Position] = model.AnswerRecord{
		Status:           status,
		SelectedAnswer:   &selected,
		TimeSpentSeconds: s.timeSpent(e.Remaining),
		Feedback: &model.Feedback{
			Selected:      e.Selected,
			Correct:       correct,
			CorrectAnswer: q.CorrectAnswer,
		},
	}
	return true, nil
}

func (s *State) applyTerminal(position int, status model.Status, spent int) (bool, error) {
	if err := s.checkPosition(position); err != nil {
		return false, err
	}
	if s.Submitted || s.Records[position].Status.Terminal() {
		return false, nil
	}

	s.Records[position] = model.AnswerRecord{
		Status:           status,
		TimeSpentSeconds: spent,
	}
	return true, nil
}

func (s *State) applyAdvance() (bool, error) {
	if s.Submitted {
		return false, nil
	}
	if !s.Status(s.Current).Terminal() {
		return false, ErrNotTerminal
	}
	if s.IsLast() {
		if s.ConfirmOpen {
			return false, nil
		}
		s.ConfirmOpen = true
		return true, nil
	}
	s.Current++
	return true, nil
}

func (s *State) applySubmit(e Submitted) (bool, error) {
	if s.Submitted {
		return false, nil
	}
	if !s.CanSubmit() {
		return false, ErrIncomplete
	}

	result := e.Result
	s.Result = &result
	s.Submitted = true
	s.ConfirmOpen = false
	return true, nil
}

func (s *State) applyRetry(e Retried) (bool, error) {
	if !s.Submitted {
		return false, ErrNotFinished
	}
	if !shuffle.IsPermutation(e.Order, len(s.Exam.Questions)) {
		return false, ErrInvalidOrder
	}
	s.reset(e.SessionID, e.Order, e.Options)
	return true, nil
}
