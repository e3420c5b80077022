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

// ResultRecorder records results and resolves share links.
type ResultRecorder interface {
	Submit(ctx context.Context, studentID string, req *model.SubmitResultRequest) (*model.StoredResult, error)
	ShareLink(ctx context.Context, studentID string, req *model.ShareLinkRequest) (string, error)
	GetShared(ctx context.Context, resultID string) (*model.StoredResult, error)
}

// ResultHandler handles result submission and sharing.
type ResultHandler struct {
	resultService ResultRecorder
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService ResultRecorder) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// SubmitResult godoc
// POST /api/v1/results
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.resultService.Submit(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"result": res})
}

// CreateShareLink godoc
// POST /api/v1/share-links
func (h *ResultHandler) CreateShareLink(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ShareLinkRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	url, err := h.resultService.ShareLink(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"url": url})
}

// GetSharedResult godoc
// GET /r/:result_id
// Public view of a shared result.
func (h *ResultHandler) GetSharedResult(c *gin.Context) {
	res, err := h.resultService.GetShared(c.Request.Context(), c.Param("result_id"))
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": res})
}
