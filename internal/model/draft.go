package model

import "time"

// DraftSnapshot is the serializable projection of an attempt session.
// Position-keyed maps use the exam position (0..n-1), not the original question index.
type DraftSnapshot struct {
	ExamID               string           `json:"exam_id,omitempty"`
	StudentID            string           `json:"student_id,omitempty"`
	SessionID            string           `json:"session_id" binding:"required,max=64"`
	RemoteAttemptID      string           `json:"remote_attempt_id,omitempty"`
	CurrentQuestionIndex *int             `json:"current_question_index,omitempty"`
	QuestionOrder        []int            `json:"question_order" binding:"required,min=1"`
	ShuffledOptions      map[int][]string `json:"shuffled_options,omitempty"`
	Answers              map[int]string   `json:"answers,omitempty"`
	Statuses             map[int]Status   `json:"statuses,omitempty" binding:"omitempty,dive,keys,min=0,endkeys,answer_status"`
	TimeSpent            map[int]int      `json:"time_spent,omitempty"`
	Feedback             map[int]Feedback `json:"feedback,omitempty"`
	Submitted            bool             `json:"submitted"`
	Score                *Result          `json:"score,omitempty"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Meaningful reports whether the snapshot carries any progress worth resuming.
func (d *DraftSnapshot) Meaningful() bool {
	if d == nil {
		return false
	}
	return len(d.Answers) > 0 ||
		len(d.Statuses) > 0 ||
		d.CurrentQuestionIndex != nil ||
		d.Submitted
}
