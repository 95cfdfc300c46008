package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interviewer/internal/config"
	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/usecase"
)

type stubInterviews struct {
	startSession *domain.Session
	startErr     error
	next         usecase.NextResult
	nextErr      error
	answered     domain.AnsweredQuestion
	answerErr    error
	audio        []byte
	audioErr     error

	gotResumeText string
	gotAnswerText string
	gotAudioName  string
}

func (s *stubInterviews) Start(_ domain.Context, _, _, resumeText, _ string) (*domain.Session, error) {
	s.gotResumeText = resumeText
	return s.startSession, s.startErr
}

func (s *stubInterviews) Next(_ domain.Context, _ string) (usecase.NextResult, error) {
	return s.next, s.nextErr
}

func (s *stubInterviews) SubmitAnswer(_ domain.Context, _, answerText string) (domain.AnsweredQuestion, error) {
	s.gotAnswerText = answerText
	return s.answered, s.answerErr
}

func (s *stubInterviews) SubmitAudioAnswer(_ domain.Context, _ string, audio io.Reader, filename string) (domain.AnsweredQuestion, error) {
	s.gotAudioName = filename
	_, _ = io.ReadAll(audio)
	return s.answered, s.answerErr
}

func (s *stubInterviews) QuestionAudio(_ domain.Context, _ string) ([]byte, error) {
	return s.audio, s.audioErr
}

type stubResults struct {
	view usecase.ResultView
	etag string
	err  error
}

func (s *stubResults) Fetch(_ domain.Context, _ string) (usecase.ResultView, string, error) {
	return s.view, s.etag, s.err
}

func testRouter(iv InterviewAPI, res ResultAPI) http.Handler {
	srv := NewServer(config.Config{MaxUploadMB: 10}, iv, res, nil, nil, nil, nil)
	r := chi.NewRouter()
	r.Post("/v1/interviews", srv.CreateInterviewHandler())
	r.Post("/v1/interviews/{id}/next", srv.NextHandler())
	r.Post("/v1/interviews/{id}/answers", srv.AnswerHandler())
	r.Get("/v1/interviews/{id}/audio", srv.QuestionAudioHandler())
	r.Get("/v1/interviews/{id}/result", srv.ResultHandler())
	return r
}

func multipartForm(t *testing.T, fields map[string]string, fileField, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(fileContent))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateInterview_Success(t *testing.T) {
	t.Parallel()
	iv := &stubInterviews{startSession: domain.NewSession("sess-1", "Ada", "Acme")}
	body, ct := multipartForm(t, map[string]string{
		"candidate_name":  "Ada",
		"company_name":    "Acme",
		"job_description": "Backend engineer, Go",
	}, "resume", "resume.txt", "ten years of Go")

	req := httptest.NewRequest(http.MethodPost, "/v1/interviews", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	testRouter(iv, &stubResults{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp["session_id"])
	assert.Equal(t, "in_progress", resp["status"])
	assert.EqualValues(t, 11, resp["total_questions"])
	assert.Equal(t, "ten years of Go", iv.gotResumeText)
}

func TestCreateInterview_MissingResume(t *testing.T) {
	t.Parallel()
	body, ct := multipartForm(t, map[string]string{
		"candidate_name":  "Ada",
		"job_description": "Backend engineer",
	}, "", "", "")

	req := httptest.NewRequest(http.MethodPost, "/v1/interviews", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, &stubResults{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "resume file required")
}

func TestCreateInterview_ValidationFailure(t *testing.T) {
	t.Parallel()
	body, ct := multipartForm(t, map[string]string{
		"job_description": "Backend engineer",
	}, "resume", "resume.txt", "text")

	req := httptest.NewRequest(http.MethodPost, "/v1/interviews", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, &stubResults{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "candidatename")
}

func TestCreateInterview_BadExtension(t *testing.T) {
	t.Parallel()
	body, ct := multipartForm(t, map[string]string{
		"candidate_name":  "Ada",
		"job_description": "Backend engineer",
	}, "resume", "resume.exe", "MZ binary")

	req := httptest.NewRequest(http.MethodPost, "/v1/interviews", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, &stubResults{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCreateInterview_NotMultipart(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "/v1/interviews", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, &stubResults{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "multipart/form-data")
}

func TestNext_ReturnsQuestion(t *testing.T) {
	t.Parallel()
	iv := &stubInterviews{next: usecase.NextResult{
		Phase:          domain.PhaseProject,
		Question:       &domain.Question{Text: "Tell me about yourself and walk me through your most significant project."},
		QuestionNumber: 1,
		TotalQuestions: 11,
	}}
	req := httptest.NewRequest(http.MethodPost, "/v1/interviews/sess-1/next", nil)
	rec := httptest.NewRecorder()
	testRouter(iv, &stubResults{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp usecase.NextResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.PhaseProject, resp.Phase)
	require.NotNil(t, resp.Question)
	assert.Equal(t, 1, resp.QuestionNumber)
}

func TestNext_SessionNotFound(t *testing.T) {
	t.Parallel()
	iv := &stubInterviews{nextErr: fmt.Errorf("%w: session gone", domain.ErrNotFound)}
	req := httptest.NewRequest(http.MethodPost, "/v1/interviews/gone/next", nil)
	rec := httptest.NewRecorder()
	testRouter(iv, &stubResults{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestAnswer_Text(t *testing.T) {
	t.Parallel()
	iv := &stubInterviews{answered: domain.AnsweredQuestion{ID: "a1", Seq: 1, Phase: domain.PhaseProject, Score: 80, Feedback: "solid"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/interviews/sess-1/answers", strings.NewReader(`{"text":"I built a payments system"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	testRouter(iv, &stubResults{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I built a payments system", iv.gotAnswerText)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 80, resp["score"])
	assert.Equal(t, "solid", resp["feedback"])
}

func TestAnswer_EmptyText(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "/v1/interviews/sess-1/answers", strings.NewReader(`{"text":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, &stubResults{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnswer_NoPendingQuestion(t *testing.T) {
	t.Parallel()
	iv := &stubInterviews{answerErr: fmt.Errorf("%w: session sess-1", domain.ErrNoPendingQuestion)}
	req := httptest.NewRequest(http.MethodPost, "/v1/interviews/sess-1/answers", strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	testRouter(iv, &stubResults{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_PENDING_QUESTION")
}

func TestAnswer_Audio(t *testing.T) {
	t.Parallel()
	iv := &stubInterviews{answered: domain.AnsweredQuestion{ID: "a1", Seq: 2, Phase: domain.PhaseProject, Score: 65}}
	body, ct := multipartForm(t, nil, "audio", "answer.mp3", "fake audio bytes")

	req := httptest.NewRequest(http.MethodPost, "/v1/interviews/sess-1/answers", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	testRouter(iv, &stubResults{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "answer.mp3", iv.gotAudioName)
}

func TestQuestionAudio(t *testing.T) {
	t.Parallel()
	iv := &stubInterviews{audio: []byte("mp3 bytes")}
	req := httptest.NewRequest(http.MethodGet, "/v1/interviews/sess-1/audio", nil)
	rec := httptest.NewRecorder()
	testRouter(iv, &stubResults{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp3 bytes", rec.Body.String())
}

func TestResult_InProgress(t *testing.T) {
	t.Parallel()
	res := &stubResults{
		view: usecase.ResultView{SessionID: "sess-1", Status: domain.SessionActive, CandidateName: "Ada"},
		etag: `"abc"`,
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/interviews/sess-1/result", nil)
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, res).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"abc"`, rec.Header().Get("ETag"))
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "in_progress", resp["status"])
}

func TestResult_NotModified(t *testing.T) {
	t.Parallel()
	res := &stubResults{
		view: usecase.ResultView{SessionID: "sess-1", Status: domain.SessionAssessed},
		etag: `"abc"`,
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/interviews/sess-1/result", nil)
	req.Header.Set("If-None-Match", `"abc"`)
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, res).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestResult_Completed(t *testing.T) {
	t.Parallel()
	overall := 67
	res := &stubResults{
		view: usecase.ResultView{
			SessionID:  "sess-1",
			Status:     domain.SessionAssessed,
			Assessment: &domain.Assessment{SessionID: "sess-1", OverallScore: overall},
		},
		etag: `"def"`,
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/interviews/sess-1/result", nil)
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, res).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp["status"])
	require.NotNil(t, resp["assessment"])
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	srv := NewServer(config.Config{}, &stubInterviews{}, &stubResults{},
		nil,
		func(context.Context) error { return nil },
		func(context.Context) error { return fmt.Errorf("redis down") },
		nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.ReadyzHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis down")
}

func TestAcceptNegotiation(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "/v1/interviews/sess-1/next", nil)
	req.Header.Set("Accept", "text/xml")
	rec := httptest.NewRecorder()
	testRouter(&stubInterviews{}, &stubResults{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}
