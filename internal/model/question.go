package model

// Question is a single multiple-choice question.
type Question struct {
	ID            string   `json:"id,omitempty"`
	Text          string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Topic         string   `json:"topic,omitempty"`
	Lesson        string   `json:"lesson,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	Chapter       string   `json:"chapter,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
}

// CreateQuestionRequest is one question inside a CreateExamRequest.
type CreateQuestionRequest struct {
	Text          string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=10"`
	CorrectAnswer string   `json:"correct_answer" binding:"required,max=500"`
	Topic         string   `json:"topic" binding:"omitempty,max=200"`
	Lesson        string   `json:"lesson" binding:"omitempty,max=200"`
	Unit          string   `json:"unit" binding:"omitempty,max=200"`
	Chapter       string   `json:"chapter" binding:"omitempty,max=200"`
	Difficulty    string   `json:"difficulty" binding:"omitempty,max=20"`
}

// ToQuestion converts the request into a domain question.
func (r CreateQuestionRequest) ToQuestion() Question {
	return Question{
		Text:          r.Text,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
		Topic:         r.Topic,
		Lesson:        r.Lesson,
		Unit:          r.Unit,
		Chapter:       r.Chapter,
		Difficulty:    r.Difficulty,
	}
}
