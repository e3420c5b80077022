// Package attempt holds the in-memory aggregate of one attempt session and
// the transition applied for every event that can change it.
package attempt

import (
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/shuffle"
)

// DefaultQuestionSeconds is the per-question countdown when the exam does not override it.
const DefaultQuestionSeconds = 60

// Domain errors.
var (
	ErrPositionOutOfRange = errors.New("position out of range")
	ErrNotTerminal        = errors.New("current position has no terminal status")
	ErrIncomplete         = errors.New("every position needs a terminal status before submit")
	ErrNotFinished        = errors.New("attempt is not finished")
	ErrInvalidOrder       = errors.New("question order is not a permutation of the exam")
)

// State is the aggregate of one attempt session.
type State struct {
	ExamID          string
	StudentID       string
	SessionID       string
	RemoteAttemptID string

	// Exam is shared and never mutated.
	Exam *model.Exam

	// QuestionSeconds is the full countdown of a position.
	QuestionSeconds int

	// Order maps exam position to the original question index.
	Order []int

	// Options holds the shuffled options per position.
	Options map[int][]string

	// Current is the displayed position.
	Current int

	Records []model.AnswerRecord

	// ConfirmOpen is set when the student pressed next on the last position.
	ConfirmOpen bool

	Submitted bool
	Result    *model.Result
	UpdatedAt time.Time
}

// New creates a fresh state for the given layout.
func New(exam *model.Exam, studentID, sessionID string, order []int, options map[int][]string, questionSeconds int) (*State, error) {
	if !shuffle.IsPermutation(order, len(exam.Questions)) {
		return nil, ErrInvalidOrder
	}
	if questionSeconds <= 0 {
		questionSeconds = DefaultQuestionSeconds
	}

	s := &State{
		ExamID:          exam.ID,
		StudentID:       studentID,
		SessionID:       sessionID,
		Exam:            exam,
		QuestionSeconds: questionSeconds,
	}
	s.reset(sessionID, order, options)
	return s, nil
}

func (s *State) reset(sessionID string, order []int, options map[int][]string) {
	s.SessionID = sessionID
	s.RemoteAttemptID = ""
	s.Order = append([]int(nil), order...)
	s.Options = make(map[int][]string, len(options))
	for p, opts := range options {
		s.Options[p] = append([]string(nil), opts...)
	}
	s.Current = 0
	s.Records = make([]model.AnswerRecord, len(order))
	for i := range s.Records {
		s.Records[i] = model.AnswerRecord{Status: model.StatusUnanswered}
	}
	s.ConfirmOpen = false
	s.Submitted = false
	s.Result = nil
}

// Total is the number of positions in the exam.
func (s *State) Total() int {
	return len(s.Order)
}

// IsLast reports whether the current position is the final one.
func (s *State) IsLast() bool {
	return s.Current == len(s.Order)-1
}

// Status returns the status of a position.
func (s *State) Status(position int) model.Status {
	if position < 0 || position >= len(s.Records) {
		return model.StatusUnanswered
	}
	return s.Records[position].Status
}

// Record returns the answer record of a position.
func (s *State) Record(position int) (model.AnswerRecord, error) {
	if err := s.checkPosition(position); err != nil {
		return model.AnswerRecord{}, err
	}
	return s.Records[position], nil
}

// Question returns the question shown at a position, with its options in
// the shuffled order of this session.
func (s *State) Question(position int) (model.Question, error) {
	if err := s.checkPosition(position); err != nil {
		return model.Question{}, err
	}
	q := s.Exam.Questions[s.Order[position]]
	if opts, ok := s.Options[position]; ok {
		q.Options = opts
	}
	return q, nil
}

// Counters are the derived tallies shown next to the question and used to gate submission.
type Counters struct {
	Total     int
	Attempted int
	Correct   int
	Wrong     int
	Timeout   int
	Skipped   int
	NoAnswer  int
	NotYet    int
}

// Counters recomputes the tallies from the records.
func (s *State) Counters() Counters {
	c := Counters{Total: len(s.Records)}
	for _, r := range s.Records {
		switch r.Status {
		case model.StatusCorrect:
			c.Correct++
		case model.StatusWrong:
			c.Wrong++
		case model.StatusTimeout:
			c.Timeout++
		case model.StatusSkipped:
			c.Skipped++
		}
	}
	c.Attempted = c.Correct + c.Wrong + c.Timeout + c.Skipped
	c.NoAnswer = c.Timeout + c.Skipped
	c.NotYet = c.Total - c.Attempted
	return c
}

// CanSubmit reports whether every position has a terminal status.
func (s *State) CanSubmit() bool {
	c := s.Counters()
	return c.Attempted == c.Total
}

func (s *State) checkPosition(position int) error {
	if position < 0 || position >= len(s.Order) {
		return fmt.Errorf("%w: %d of %d", ErrPositionOutOfRange, position, len(s.Order))
	}
	return nil
}

func (s *State) timeSpent(remaining int) int {
	spent := s.QuestionSeconds - remaining
	if spent < 0 {
		return 0
	}
	if spent > s.QuestionSeconds {
		return s.QuestionSeconds
	}
	return spent
}
