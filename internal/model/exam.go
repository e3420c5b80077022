package model

// Exam is the immutable paper a student works through during an attempt.
type Exam struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Grade     string `json:"grade,omitempty"`
	Term      string `json:"term,omitempty"`
	TeacherID string `json:"teacher_id,omitempty"`
	// Duration is the whole-exam duration in minutes as reported by the exam service.
	Duration int `json:"duration"`
	// QuestionSeconds overrides the per-question countdown when positive.
	QuestionSeconds int        `json:"question_seconds,omitempty"`
	Questions       []Question `json:"questions"`
}

// CreateExamRequest is the payload used by the seeder and the admin import path.
type CreateExamRequest struct {
	Title           string                  `json:"title" binding:"required,min=3,max=255"`
	Subject         string                  `json:"subject" binding:"omitempty,max=100"`
	Grade           string                  `json:"grade" binding:"omitempty,max=20"`
	Term            string                  `json:"term" binding:"omitempty,max=20"`
	TeacherID       string                  `json:"teacher_id" binding:"omitempty,max=64"`
	Duration        int                     `json:"duration" binding:"min=0,max=480"`
	QuestionSeconds int                     `json:"question_seconds" binding:"min=0,max=3600"`
	Questions       []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
