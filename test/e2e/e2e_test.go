//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/draft"
	"github.com/stemsi/exstem-attempt/internal/kvstore"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/remote"
	"github.com/stemsi/exstem-attempt/internal/service"
	"github.com/stemsi/exstem-attempt/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBaseURL = "http://localhost:8080"
	teacherID      = "e2e_teacher"
	studentID      = "e2e_student"
	otherStudentID = "e2e_other_student"
)

const examFile = `{
	"title": "E2E Pecahan",
	"subject": "Matematika",
	"duration": 10,
	"question_seconds": 120,
	"questions": [
		{"question_text": "1/2 + 1/2 = ?", "options": ["1", "2", "1/4"], "correct_answer": "1", "topic": "Penjumlahan pecahan"},
		{"question_text": "1/4 dari 8 = ?", "options": ["2", "4", "6"], "correct_answer": "2", "topic": "Pecahan dari bilangan"},
		{"question_text": "0,5 = ?", "options": ["1/2", "1/5", "5/1"], "correct_answer": "1/2", "topic": "Pecahan ke desimal"}
	]
}`

var (
	baseURL      string
	teacherToken string
	studentToken string
	otherToken   string
	examID       string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	// Tokens are signed with the server's JWT_SECRET.
	auth := service.NewAuthService(config.Load())
	var err error
	if teacherToken, err = auth.GenerateTeacherToken(teacherID); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}
	if studentToken, err = auth.GenerateStudentToken(studentID); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}
	if otherToken, err = auth.GenerateStudentToken(otherStudentID); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func TestE2EFlow(t *testing.T) {
	// Step 1: Teacher imports the exam
	t.Run("ImportExam", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/api/v1/teacher/exams", []byte(examFile), teacherToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode, readBody(resp))

		var body struct {
			Data struct {
				Exam model.Exam `json:"exam"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		require.NotEmpty(t, body.Data.Exam.ID)
		assert.Equal(t, teacherID, body.Data.Exam.TeacherID)
		examID = body.Data.Exam.ID
	})

	// Step 2: Students cannot import exams
	t.Run("StudentCannotImport", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/api/v1/teacher/exams", []byte(examFile), studentToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	var (
		result    *model.Result
		attemptID string
	)

	// Step 3: Student takes the exam through the attempt engine
	t.Run("TakeExam", func(t *testing.T) {
		require.NotEmpty(t, examID, "exam import must succeed first")
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		client := remote.NewHTTPClient(baseURL, studentToken, 10*time.Second, zerolog.Nop())
		mgr := session.NewManager(client, draft.NewRepository(kvstore.NewMemoryStore()), session.Config{}, zerolog.Nop())

		sess, err := mgr.Open(ctx, examID, studentID)
		require.NoError(t, err)
		defer sess.Close()

		for {
			v := sess.View()
			if v.ConfirmOpen {
				break
			}
			changed, err := sess.Answer(ctx, v.Question.CorrectAnswer)
			require.NoError(t, err)
			require.True(t, changed)
			require.NoError(t, sess.Next(ctx))
		}

		result, err = sess.Submit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 100, result.Percentage)
		assert.Equal(t, 3, result.CorrectCount)
		assert.NotEmpty(t, result.ResultID)
		assert.NotEmpty(t, result.ShareURL)

		attemptID = service.AttemptIDFor(sess.SessionID()).String()
	})

	// Step 4: The autosaved snapshot is readable by its owner only
	t.Run("AttemptSnapshot", func(t *testing.T) {
		require.NotEmpty(t, attemptID)

		resp, err := do(http.MethodGet, "/api/v1/attempts/"+attemptID, nil, studentToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, readBody(resp))

		var body struct {
			Data struct {
				Snapshot model.DraftSnapshot `json:"snapshot"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		assert.True(t, body.Data.Snapshot.Submitted)
		assert.Len(t, body.Data.Snapshot.QuestionOrder, 3)

		other, err := do(http.MethodGet, "/api/v1/attempts/"+attemptID, nil, otherToken)
		require.NoError(t, err)
		defer other.Body.Close()
		assert.Equal(t, http.StatusForbidden, other.StatusCode)
	})

	// Step 5: The share link is public
	t.Run("SharedResult", func(t *testing.T) {
		require.NotNil(t, result)
		u, err := url.Parse(result.ShareURL)
		require.NoError(t, err)

		resp, err := do(http.MethodGet, u.Path, nil, "")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, readBody(resp))

		var body struct {
			Data struct {
				Result model.StoredResult `json:"result"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		assert.Equal(t, result.ResultID, body.Data.Result.ID)
		assert.Equal(t, 3, body.Data.Result.Score)
		assert.Equal(t, 100, body.Data.Result.PerformancePercentage)
	})

	// Step 6: A result cannot be claimed by another student
	t.Run("ShareLinkOtherStudent", func(t *testing.T) {
		require.NotNil(t, result)
		payload, _ := json.Marshal(model.ShareLinkRequest{ResultID: result.ResultID})

		resp, err := do(http.MethodPost, "/api/v1/share-links", payload, otherToken)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

// Helpers

func do(method, path string, body []byte, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
