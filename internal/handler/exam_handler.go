package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempt/internal/examfile"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
)

const maxExamFileSize = 4 << 20

// ExamProvider loads and imports exams.
type ExamProvider interface {
	GetExam(ctx context.Context, examID string) (*model.Exam, error)
	Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error)
}

// ExamHandler serves exam papers and the teacher import endpoint.
type ExamHandler struct {
	examService ExamProvider
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService ExamProvider) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// GetExam godoc
// GET /api/v1/exams/:exam_id
// Returns the exam with its questions in original order.
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, err := h.examService.GetExam(c.Request.Context(), c.Param("exam_id"))
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, exam)
}

// ImportExam godoc
// POST /api/v1/teacher/exams
// Imports an exam file. The calling teacher becomes the owner.
func (h *ExamHandler) ImportExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxExamFileSize)
	raw, err := c.GetRawData()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	req, err := examfile.Parse(raw)
	if err != nil {
		failWithError(c, err)
		return
	}
	req.TeacherID = claims.UserID

	exam, err := h.examService.Create(c.Request.Context(), req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}
