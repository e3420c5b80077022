package model

import (
	"encoding/json"
	"time"
)

// Status enumerates the per-position answer states.
type Status string

const (
	StatusUnanswered Status = "unanswered"
	StatusCorrect    Status = "correct"
	StatusWrong      Status = "wrong"
	StatusTimeout    Status = "timeout"
	StatusSkipped    Status = "skipped"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusCorrect, StatusWrong, StatusTimeout, StatusSkipped:
		return true
	default:
		return false
	}
}

// Feedback is what the student sees right after answering a question.
type Feedback struct {
	Selected      string `json:"selected"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
}

// AnswerRecord is the bookkeeping for a single exam position.
type AnswerRecord struct {
	Status           Status    `json:"status"`
	SelectedAnswer   *string   `json:"selected_answer,omitempty"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	Feedback         *Feedback `json:"feedback,omitempty"`
}

// AttemptStatus enumerates the server-side attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
)

// Attempt is the durable server-side mirror of one attempt session.
// Every session id maps to its own attempt row.
type Attempt struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	ExamID     string          `json:"exam_id"`
	StudentID  string          `json:"student_id"`
	Status     AttemptStatus   `json:"status"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
	FinalScore *float64        `json:"final_score,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// AutosaveAttemptRequest is the payload of the autosave endpoint.
type AutosaveAttemptRequest struct {
	ExamID   string        `json:"exam_id" binding:"omitempty,max=64"`
	Snapshot DraftSnapshot `json:"snapshot" binding:"required"`
}

// AutosaveAttemptResponse carries the remote attempt identifier.
type AutosaveAttemptResponse struct {
	AttemptID string `json:"attempt_id"`
}

// FinalizeAttemptRequest is the payload of the finalize endpoint.
type FinalizeAttemptRequest struct {
	Score float64 `json:"score" binding:"min=0,max=100"`
}

// AttemptSummary is the per-attempt row a teacher sees on the live monitor.
type AttemptSummary struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	StudentID  string        `json:"student_id"`
	Status     AttemptStatus `json:"status"`
	Answered   int           `json:"answered"`
	FinalScore *float64      `json:"final_score,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// AttemptEvent is published on the exam's monitor channel.
type AttemptEvent struct {
	Type      string    `json:"type"`
	AttemptID string    `json:"attempt_id"`
	SessionID string    `json:"session_id,omitempty"`
	StudentID string    `json:"student_id"`
	Answered  int       `json:"answered"`
	Submitted bool      `json:"submitted"`
	Score     *float64  `json:"score,omitempty"`
	At        time.Time `json:"at"`
}

// Attempt event types.
const (
	AttemptEventSaved     = "attempt_saved"
	AttemptEventFinalized = "attempt_finalized"
)

// AttemptJob is queued for the autosave worker.
type AttemptJob struct {
	AttemptID string          `json:"attempt_id"`
	SessionID string          `json:"session_id"`
	ExamID    string          `json:"exam_id"`
	StudentID string          `json:"student_id"`
	Status    AttemptStatus   `json:"status"`
	Snapshot  json.RawMessage `json:"snapshot"`
	SavedAt   time.Time       `json:"saved_at"`
}

// ScoreJob is queued for the scoring worker.
type ScoreJob struct {
	AttemptID  string    `json:"attempt_id"`
	Score      float64   `json:"score"`
	FinishedAt time.Time `json:"finished_at"`
	// Retries counts how often the job found no attempt row yet.
	Retries int `json:"retries,omitempty"`
}
