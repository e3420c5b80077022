package attempt

import (
	"time"

	"github.com/stemsi/exstem-attempt/internal/model"
)

// Snapshot projects the state into its persisted form.
func (s *State) Snapshot(now time.Time) *model.DraftSnapshot {
	current := s.Current
	snap := &model.DraftSnapshot{
		ExamID:               s.ExamID,
		StudentID:            s.StudentID,
		SessionID:            s.SessionID,
		RemoteAttemptID:      s.RemoteAttemptID,
		CurrentQuestionIndex: &current,
		QuestionOrder:        append([]int(nil), s.Order...),
		ShuffledOptions:      make(map[int][]string, len(s.Options)),
		Answers:              make(map[int]string),
		Statuses:             make(map[int]model.Status),
		TimeSpent:            make(map[int]int),
		Feedback:             make(map[int]model.Feedback),
		Submitted:            s.Submitted,
		UpdatedAt:            now,
	}

	for p, opts := range s.Options {
		snap.ShuffledOptions[p] = append([]string(nil), opts...)
	}
	for p, r := range s.Records {
		if !r.Status.Terminal() {
			continue
		}
		snap.Statuses[p] = r.Status
		snap.TimeSpent[p] = r.TimeSpentSeconds
		if r.SelectedAnswer != nil {
			snap.Answers[p] = *r.SelectedAnswer
		}
		if r.Feedback != nil {
			snap.Feedback[p] = *r.Feedback
		}
	}
	if s.Result != nil {
		result := *s.Result
		snap.Score = &result
	}
	return snap
}

// Restore copies the progress of a persisted snapshot into a state built
// with the layout of that session. Entries for positions outside the exam are dropped.
func (s *State) Restore(snap *model.DraftSnapshot) {
	s.RemoteAttemptID = snap.RemoteAttemptID
	s.UpdatedAt = snap.UpdatedAt

	for p := range s.Records {
		status, ok := snap.Statuses[p]
		selected, answered := snap.Answers[p]
		if !ok && answered {
			// Status lost but the answer survived: derive it.
			status = model.StatusWrong
			if selected == s.Exam.Questions[s.Order[p]].CorrectAnswer {
				status = model.StatusCorrect
			}
		}
		if !status.Terminal() {
			continue
		}

		r := model.AnswerRecord{
			Status:           status,
			TimeSpentSeconds: snap.TimeSpent[p],
		}
		if answered {
			r.SelectedAnswer = &selected
		}
		if fb, ok := snap.Feedback[p]; ok {
			r.Feedback = &fb
		}
		s.Records[p] = r
	}

	if snap.CurrentQuestionIndex != nil {
		s.Current = clamp(*snap.CurrentQuestionIndex, 0, len(s.Order)-1)
	}

	s.Submitted = snap.Submitted
	if snap.Score != nil {
		result := *snap.Score
		s.Result = &result
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
