package model

import "time"

// TopicCount is one entry of a weak-topic tally.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Result is the scored outcome of a finished attempt.
type Result struct {
	Percentage       int          `json:"percentage"`
	CorrectCount     int          `json:"correct_count"`
	Total            int          `json:"total"`
	WrongCount       int          `json:"wrong_count"`
	TimeoutCount     int          `json:"timeout_count"`
	SkippedCount     int          `json:"skipped_count"`
	WrongTopics      []TopicCount `json:"wrong_topics"`
	TimeoutTopics    []TopicCount `json:"timeout_topics"`
	RecommendedTopic string       `json:"recommended_topic,omitempty"`
	ResultID         string       `json:"result_id,omitempty"`
	ShareURL         string       `json:"share_url,omitempty"`
}

// SubmitResultRequest is the payload of the result submission endpoint.
type SubmitResultRequest struct {
	StudentID             string `json:"student_id" binding:"required,max=64"`
	ExamID                string `json:"exam_id" binding:"required,max=64"`
	TeacherID             string `json:"teacher_id" binding:"omitempty,max=64"`
	Score                 int    `json:"score" binding:"min=0"`
	PerformancePercentage int    `json:"performance_percentage" binding:"min=0,max=100"`
	TotalQuestions        int    `json:"total_questions" binding:"min=0"`
	SessionID             string `json:"session_id" binding:"required,max=64"`
}

// StoredResult is a persisted result row.
type StoredResult struct {
	ID string `json:"id"`
	SubmitResultRequest
	CreatedAt time.Time `json:"created_at"`
}

// ShareLinkRequest is the payload of the share link endpoint.
type ShareLinkRequest struct {
	ResultID string `json:"result_id" binding:"required,max=64"`
	ExamID   string `json:"exam_id" binding:"omitempty,max=64"`
}
