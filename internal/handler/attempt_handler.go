package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/validator"
)

// AttemptRecorder stores attempt snapshots and final scores.
type AttemptRecorder interface {
	Autosave(ctx context.Context, studentID string, req *model.AutosaveAttemptRequest) (string, error)
	Finalize(ctx context.Context, studentID, attemptID string, score float64) error
	GetSnapshot(ctx context.Context, studentID, attemptID string) (*model.DraftSnapshot, error)
}

// AttemptHandler handles the student attempt endpoints.
type AttemptHandler struct {
	attemptService AttemptRecorder
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService AttemptRecorder) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// Autosave godoc
// POST /api/v1/attempts/autosave
// Stores the latest snapshot of a session. Returns the attempt id.
func (h *AttemptHandler) Autosave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AutosaveAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attemptID, err := h.attemptService.Autosave(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.AutosaveAttemptResponse{AttemptID: attemptID})
}

// Finalize godoc
// POST /api/v1/attempts/:attempt_id/finalize
// Marks the attempt completed with its final score.
func (h *AttemptHandler) Finalize(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.FinalizeAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attemptID := c.Param("attempt_id")
	if err := h.attemptService.Finalize(c.Request.Context(), claims.UserID, attemptID, req.Score); err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"attempt_id": attemptID,
		"status":     model.AttemptStatusCompleted,
	})
}

// GetAttempt godoc
// GET /api/v1/attempts/:attempt_id
// Returns the latest snapshot of one of the student's attempts.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.attemptService.GetSnapshot(c.Request.Context(), claims.UserID, c.Param("attempt_id"))
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"snapshot": snap})
}
