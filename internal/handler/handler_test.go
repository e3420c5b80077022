package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
	"github.com/stemsi/exstem-attempt/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

// ─── Fakes ─────────────────────────────────────────────────────────────

type fakeAttempts struct {
	attemptID string
	snap      *model.DraftSnapshot
	err       error

	gotStudent string
	gotReq     *model.AutosaveAttemptRequest
	gotScore   float64
}

func (f *fakeAttempts) Autosave(_ context.Context, studentID string, req *model.AutosaveAttemptRequest) (string, error) {
	f.gotStudent, f.gotReq = studentID, req
	return f.attemptID, f.err
}

func (f *fakeAttempts) Finalize(_ context.Context, studentID, _ string, score float64) error {
	f.gotStudent, f.gotScore = studentID, score
	return f.err
}

func (f *fakeAttempts) GetSnapshot(_ context.Context, studentID, _ string) (*model.DraftSnapshot, error) {
	f.gotStudent = studentID
	return f.snap, f.err
}

type fakeResults struct {
	stored *model.StoredResult
	url    string
	err    error
}

func (f *fakeResults) Submit(_ context.Context, _ string, req *model.SubmitResultRequest) (*model.StoredResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.StoredResult{ID: "res-1", SubmitResultRequest: *req}, nil
}

func (f *fakeResults) ShareLink(context.Context, string, *model.ShareLinkRequest) (string, error) {
	return f.url, f.err
}

func (f *fakeResults) GetShared(context.Context, string) (*model.StoredResult, error) {
	return f.stored, f.err
}

type fakeExams struct {
	exam    *model.Exam
	err     error
	created *model.CreateExamRequest
}

func (f *fakeExams) GetExam(context.Context, string) (*model.Exam, error) {
	return f.exam, f.err
}

func (f *fakeExams) Create(_ context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Exam{ID: "exam-1", Title: req.Title, TeacherID: req.TeacherID}, nil
}

// ─── Helpers ───────────────────────────────────────────────────────────

func withClaims(tokenType service.TokenType, userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: tokenType, UserID: userID})
		c.Next()
	}
}

func serve(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func attemptRouter(f *fakeAttempts) *gin.Engine {
	h := NewAttemptHandler(f)
	r := gin.New()
	r.Use(withClaims(service.TokenTypeStudent, "stu-1"))
	r.POST("/attempts/autosave", h.Autosave)
	r.POST("/attempts/:attempt_id/finalize", h.Finalize)
	r.GET("/attempts/:attempt_id", h.GetAttempt)
	return r
}

func validSnapshot() model.DraftSnapshot {
	return model.DraftSnapshot{
		SessionID:     "sess-1",
		QuestionOrder: []int{1, 0},
		Answers:       map[int]string{0: "B"},
		Statuses:      map[int]model.Status{0: model.StatusCorrect},
	}
}

// ─── Attempts ──────────────────────────────────────────────────────────

func TestAttemptHandler_Autosave(t *testing.T) {
	f := &fakeAttempts{attemptID: "att-1"}
	r := attemptRouter(f)

	w, env := serve(t, r, http.MethodPost, "/attempts/autosave", model.AutosaveAttemptRequest{
		ExamID:   "exam-1",
		Snapshot: validSnapshot(),
	})

	require.Equal(t, http.StatusOK, w.Code)
	var out model.AutosaveAttemptResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "att-1", out.AttemptID)
	assert.Equal(t, "stu-1", f.gotStudent)
	assert.Equal(t, []int{1, 0}, f.gotReq.Snapshot.QuestionOrder)
}

func TestAttemptHandler_AutosaveValidation(t *testing.T) {
	r := attemptRouter(&fakeAttempts{attemptID: "att-1"})

	t.Run("missing question order", func(t *testing.T) {
		w, env := serve(t, r, http.MethodPost, "/attempts/autosave", `{"snapshot":{"session_id":"s"}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, response.ErrValidation, env.Error.Code)
		assert.Contains(t, env.Error.Fields, "snapshot.question_order")
	})

	t.Run("unknown status", func(t *testing.T) {
		w, env := serve(t, r, http.MethodPost, "/attempts/autosave",
			`{"snapshot":{"session_id":"s","question_order":[0],"statuses":{"0":"maybe"}}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, response.ErrValidation, env.Error.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		w, env := serve(t, r, http.MethodPost, "/attempts/autosave", `{"snapshot":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Fields, "detail")
	})
}

func TestAttemptHandler_AutosaveServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrAttemptForbidden, http.StatusForbidden, response.ErrAttemptForbidden},
		{service.ErrInvalidSnapshot, http.StatusBadRequest, response.ErrInvalidSnapshot},
		{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
		{errors.New("redis down"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			r := attemptRouter(&fakeAttempts{err: tc.err})
			w, env := serve(t, r, http.MethodPost, "/attempts/autosave", model.AutosaveAttemptRequest{Snapshot: validSnapshot()})
			assert.Equal(t, tc.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestAttemptHandler_Finalize(t *testing.T) {
	f := &fakeAttempts{}
	r := attemptRouter(f)

	w, _ := serve(t, r, http.MethodPost, "/attempts/att-1/finalize", model.FinalizeAttemptRequest{Score: 80})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 80.0, f.gotScore)

	w, env := serve(t, r, http.MethodPost, "/attempts/att-1/finalize", `{"score":150}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "score")
}

func TestAttemptHandler_GetAttempt(t *testing.T) {
	snap := validSnapshot()
	r := attemptRouter(&fakeAttempts{snap: &snap})

	w, env := serve(t, r, http.MethodGet, "/attempts/att-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Snapshot model.DraftSnapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "sess-1", out.Snapshot.SessionID)

	r = attemptRouter(&fakeAttempts{err: service.ErrAttemptNotFound})
	w, env = serve(t, r, http.MethodGet, "/attempts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrAttemptNotFound, env.Error.Code)
}

func TestAttemptHandler_NoClaims(t *testing.T) {
	h := NewAttemptHandler(&fakeAttempts{})
	r := gin.New()
	r.POST("/attempts/autosave", h.Autosave)

	w, env := serve(t, r, http.MethodPost, "/attempts/autosave", model.AutosaveAttemptRequest{Snapshot: validSnapshot()})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.ErrTokenRequired, env.Error.Code)
}

// ─── Results ───────────────────────────────────────────────────────────

func resultRouter(f *fakeResults) *gin.Engine {
	h := NewResultHandler(f)
	r := gin.New()
	r.GET("/r/:result_id", h.GetSharedResult)
	api := r.Group("/", withClaims(service.TokenTypeStudent, "stu-1"))
	api.POST("/results", h.SubmitResult)
	api.POST("/share-links", h.CreateShareLink)
	return r
}

func TestResultHandler_Submit(t *testing.T) {
	r := resultRouter(&fakeResults{})

	w, env := serve(t, r, http.MethodPost, "/results", model.SubmitResultRequest{
		StudentID:             "stu-1",
		ExamID:                "exam-1",
		Score:                 3,
		PerformancePercentage: 75,
		TotalQuestions:        4,
		SessionID:             "sess-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var out struct {
		Result struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "res-1", out.Result.ID)

	w, env = serve(t, r, http.MethodPost, "/results", `{"exam_id":"exam-1","performance_percentage":120}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Fields, "student_id")
	assert.Contains(t, env.Error.Fields, "performance_percentage")
}

func TestResultHandler_ShareLink(t *testing.T) {
	r := resultRouter(&fakeResults{url: "http://share/r/res-1"})

	w, env := serve(t, r, http.MethodPost, "/share-links", model.ShareLinkRequest{ResultID: "res-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "http://share/r/res-1", out.URL)

	r = resultRouter(&fakeResults{err: service.ErrResultForbidden})
	w, env = serve(t, r, http.MethodPost, "/share-links", model.ShareLinkRequest{ResultID: "res-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrResultForbidden, env.Error.Code)
}

func TestResultHandler_GetShared(t *testing.T) {
	r := resultRouter(&fakeResults{stored: &model.StoredResult{ID: "res-1"}})
	w, _ := serve(t, r, http.MethodGet, "/r/res-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	r = resultRouter(&fakeResults{err: service.ErrResultNotFound})
	w, env := serve(t, r, http.MethodGet, "/r/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrResultNotFound, env.Error.Code)
}

// ─── Exams ─────────────────────────────────────────────────────────────

func TestExamHandler_GetExam(t *testing.T) {
	h := NewExamHandler(&fakeExams{exam: &model.Exam{ID: "exam-1", Title: "Pecahan"}})
	r := gin.New()
	r.GET("/exams/:exam_id", h.GetExam)

	w, env := serve(t, r, http.MethodGet, "/exams/exam-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var exam model.Exam
	require.NoError(t, json.Unmarshal(env.Data, &exam))
	assert.Equal(t, "Pecahan", exam.Title)

	h = NewExamHandler(&fakeExams{err: service.ErrExamNotFound})
	r = gin.New()
	r.GET("/exams/:exam_id", h.GetExam)
	w, env = serve(t, r, http.MethodGet, "/exams/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrExamNotFound, env.Error.Code)
}

func TestExamHandler_ImportExam(t *testing.T) {
	f := &fakeExams{}
	h := NewExamHandler(f)
	r := gin.New()
	r.POST("/teacher/exams", withClaims(service.TokenTypeTeacher, "tch-1"), h.ImportExam)

	file := `{"title":"Pecahan","teacher_id":"someone-else","questions":[{"question_text":"1/2+1/2","options":["1","2"],"correct_answer":"1"}]}`
	w, env := serve(t, r, http.MethodPost, "/teacher/exams", file)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "tch-1", f.created.TeacherID)

	var out struct {
		Exam model.Exam `json:"exam"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "exam-1", out.Exam.ID)

	bad := `{"title":"Pecahan","questions":[{"question_text":"q","options":["1","2"],"correct_answer":"3"}]}`
	w, env = serve(t, r, http.MethodPost, "/teacher/exams", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidPayload, env.Error.Code)
}

// ─── Monitor ───────────────────────────────────────────────────────────

func TestMonitorHandler_Rejects(t *testing.T) {
	examID := uuid.NewString()
	exams := &fakeExams{exam: &model.Exam{ID: examID, TeacherID: "tch-owner"}}
	h := NewMonitorHandler(nil, exams, nil, zerolog.Nop())

	r := gin.New()
	r.GET("/exams/:exam_id/attempts/stream", withClaims(service.TokenTypeTeacher, "tch-other"), h.MonitorAttemptsSSE)

	w, env := serve(t, r, http.MethodGet, "/exams/not-a-uuid/attempts/stream", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, env.Error.Code)

	w, env = serve(t, r, http.MethodGet, "/exams/"+examID+"/attempts/stream", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrForbidden, env.Error.Code)
}

func TestErrorStatus_WrappedErrors(t *testing.T) {
	status, code := errorStatus(errors.Join(errors.New("ctx"), service.ErrInvalidScore))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.ErrInvalidScore, code)

	status, code = errorStatus(service.ErrResultForbidden)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, response.ErrResultForbidden, code)
}
