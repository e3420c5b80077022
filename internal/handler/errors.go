package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempt/internal/examfile"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
)

// errorStatus maps a service error to its HTTP status and error code.
// Unknown errors are internal.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusBadRequest, response.ErrNoQuestions
	case errors.Is(err, examfile.ErrInvalidExam):
		return http.StatusBadRequest, response.ErrInvalidPayload

	case errors.Is(err, service.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, service.ErrAttemptForbidden):
		return http.StatusForbidden, response.ErrAttemptForbidden
	case errors.Is(err, service.ErrInvalidSnapshot):
		return http.StatusBadRequest, response.ErrInvalidSnapshot
	case errors.Is(err, service.ErrInvalidScore):
		return http.StatusBadRequest, response.ErrInvalidScore

	case errors.Is(err, service.ErrResultNotFound):
		return http.StatusNotFound, response.ErrResultNotFound
	case errors.Is(err, service.ErrResultForbidden):
		return http.StatusForbidden, response.ErrResultForbidden
	case errors.Is(err, service.ErrInvalidResult):
		return http.StatusBadRequest, response.ErrInvalidResult

	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWithError writes the mapped error response.
func failWithError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}
