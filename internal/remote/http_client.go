package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
)

// HTTPClient talks to the attempt API with a student bearer token.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// NewHTTPClient creates a client for the API rooted at baseURL.
func NewHTTPClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "remote").Logger(),
	}
}

// FetchExam loads the exam paper identified by examID.
func (c *HTTPClient) FetchExam(ctx context.Context, examID string) (*model.Exam, error) {
	var exam model.Exam
	if err := c.do(ctx, http.MethodGet, "/api/v1/exams/"+url.PathEscape(examID), nil, &exam); err != nil {
		return nil, fmt.Errorf("fetch exam %s: %w", examID, err)
	}
	return &exam, nil
}

// AutosaveAttempt pushes a draft snapshot and returns the server's attempt id.
func (c *HTTPClient) AutosaveAttempt(ctx context.Context, snap *model.DraftSnapshot) (string, error) {
	req := model.AutosaveAttemptRequest{ExamID: snap.ExamID, Snapshot: *snap}

	var out model.AutosaveAttemptResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/attempts/autosave", req, &out); err != nil {
		return "", fmt.Errorf("autosave attempt: %w", err)
	}
	return out.AttemptID, nil
}

// FinalizeAttempt marks the server-side attempt finished with the given score.
func (c *HTTPClient) FinalizeAttempt(ctx context.Context, attemptID string, score float64) error {
	path := "/api/v1/attempts/" + url.PathEscape(attemptID) + "/finalize"
	if err := c.do(ctx, http.MethodPost, path, model.FinalizeAttemptRequest{Score: score}, nil); err != nil {
		return fmt.Errorf("finalize attempt %s: %w", attemptID, err)
	}
	return nil
}

// SubmitResult records a finished result and returns its id.
func (c *HTTPClient) SubmitResult(ctx context.Context, req model.SubmitResultRequest) (string, error) {
	var out struct {
		Result struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/results", req, &out); err != nil {
		return "", fmt.Errorf("submit result: %w", err)
	}
	return out.Result.ID, nil
}

// CreateShareLink asks the server for a shareable result URL.
func (c *HTTPClient) CreateShareLink(ctx context.Context, req model.ShareLinkRequest) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/share-links", req, &out); err != nil {
		return "", fmt.Errorf("create share link: %w", err)
	}
	return out.URL, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("API call")

	var env response.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: env.Metadata.RequestID}
		if env.Error != nil {
			apiErr.Code = string(env.Error.Code)
			apiErr.Message = env.Error.Message
		}
		c.log.Warn().
			Str("path", path).
			Int("status", apiErr.Status).
			Str("code", apiErr.Code).
			Str("request_id", apiErr.RequestID).
			Msg("API call rejected")
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
