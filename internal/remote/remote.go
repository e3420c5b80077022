// Package remote defines the collaborator services the attempt engine
// consumes, and an HTTP client for the REST API that provides them.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-attempt/internal/model"
)

// ErrNotFound is matched by errors for missing remote resources.
var ErrNotFound = errors.New("remote resource not found")

// ExamFetcher loads exams.
type ExamFetcher interface {
	FetchExam(ctx context.Context, examID string) (*model.Exam, error)
}

// AttemptStore mirrors attempts remotely.
type AttemptStore interface {
	AutosaveAttempt(ctx context.Context, snap *model.DraftSnapshot) (attemptID string, err error)
	FinalizeAttempt(ctx context.Context, attemptID string, score float64) error
}

// ResultSubmitter records finished results.
type ResultSubmitter interface {
	SubmitResult(ctx context.Context, req model.SubmitResultRequest) (resultID string, err error)
}

// ShareLinker hands out public links to results.
type ShareLinker interface {
	CreateShareLink(ctx context.Context, req model.ShareLinkRequest) (url string, err error)
}

// Client is everything the engine needs from the remote side.
type Client interface {
	ExamFetcher
	AttemptStore
	ResultSubmitter
	ShareLinker
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
