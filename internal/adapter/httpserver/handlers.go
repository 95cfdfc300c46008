package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-interviewer/internal/config"
	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/usecase"
	"github.com/fairyhunter13/ai-interviewer/pkg/textx"
)

// InterviewAPI is the slice of the interview service the handlers need.
type InterviewAPI interface {
	Start(ctx domain.Context, candidateName, companyName, resumeText, jobText string) (*domain.Session, error)
	Next(ctx domain.Context, sessionID string) (usecase.NextResult, error)
	SubmitAnswer(ctx domain.Context, sessionID, answerText string) (domain.AnsweredQuestion, error)
	SubmitAudioAnswer(ctx domain.Context, sessionID string, audio io.Reader, filename string) (domain.AnsweredQuestion, error)
	QuestionAudio(ctx domain.Context, sessionID string) ([]byte, error)
}

// ResultAPI fetches interview outcomes.
type ResultAPI interface {
	Fetch(ctx domain.Context, sessionID string) (usecase.ResultView, string, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Interviews InterviewAPI
	Results    ResultAPI
	Extractor  domain.TextExtractor
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	TikaCheck  func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, interviews InterviewAPI, results ResultAPI, extractor domain.TextExtractor, dbCheck, redisCheck, tikaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Interviews: interviews, Results: results, Extractor: extractor, DBCheck: dbCheck, RedisCheck: redisCheck, TikaCheck: tikaCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// allowedExt enforces an allowlist for resume uploads: .txt, .pdf, .docx
func allowedExt(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".txt") || strings.HasSuffix(n, ".pdf") || strings.HasSuffix(n, ".docx")
}

func allowedMIMEFor(m string, filename string) bool {
	m = strings.ToLower(m)
	// Some detectors misclassify rich plain text, so .txt accepts any text/*.
	if strings.HasSuffix(strings.ToLower(filename), ".txt") && strings.HasPrefix(m, "text/") {
		return true
	}
	if strings.HasPrefix(m, "text/plain") { // allow parameters such as charset
		return true
	}
	return m == "application/pdf" || m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// extractUploadedText extracts resume text from the uploaded content.
// .pdf/.docx go through the external extractor via a temp file; .txt is
// sanitized directly.
func extractUploadedText(ctx context.Context, extractor domain.TextExtractor, h *multipart.FileHeader, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(h.Filename))
	if ext == ".pdf" || ext == ".docx" {
		if extractor == nil {
			return "", fmt.Errorf("%w: %s requires extractor", domain.ErrInvalidArgument, strings.TrimPrefix(ext, "."))
		}
		tmp, err := os.CreateTemp("", "resume-*")
		if err != nil {
			return "", err
		}
		defer func() { _ = os.Remove(tmp.Name()); _ = tmp.Close() }()
		if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
			return "", err
		}
		return extractor.ExtractPath(ctx, h.Filename, tmp.Name())
	}
	return textx.SanitizeText(string(data)), nil
}

func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	a := r.Header.Get("Accept")
	if a == "" || a == "*/*" || strings.Contains(a, "application/json") {
		return true
	}
	writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
		Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a},
	}})
	return false
}

// CreateInterviewHandler starts a session from a multipart form carrying the
// candidate details, the job description and a resume file.
func (s *Server) CreateInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB},
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		form := struct {
			CandidateName  string `validate:"required,max=200"`
			CompanyName    string `validate:"max=200"`
			JobDescription string `validate:"required,max=5000"`
		}{
			CandidateName:  r.FormValue("candidate_name"),
			CompanyName:    r.FormValue("company_name"),
			JobDescription: r.FormValue("job_description"),
		}
		if err := getValidator().Struct(form); err != nil {
			verrs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
			return
		}

		resumeFile, resumeHeader, err := r.FormFile("resume")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: resume file required", domain.ErrInvalidArgument), map[string]string{"field": "resume"})
			return
		}
		defer func() { _ = resumeFile.Close() }()
		resumeBytes, err := io.ReadAll(resumeFile)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: resume read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		if !allowedExt(resumeHeader.Filename) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "unsupported media type for resume (extension)",
				Details: map[string]any{"filename": resumeHeader.Filename},
			}})
			return
		}
		m := mimetype.Detect(resumeBytes)
		if !allowedMIMEFor(m.String(), resumeHeader.Filename) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "unsupported media type for resume (content)",
				Details: map[string]any{"mime": m.String(), "filename": resumeHeader.Filename},
			}})
			return
		}

		resumeText, err := extractUploadedText(r.Context(), s.Extractor, resumeHeader, resumeBytes)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: resume extract: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		session, err := s.Interviews.Start(r.Context(), form.CandidateName, form.CompanyName, resumeText, form.JobDescription)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_id":      session.ID,
			"status":          "in_progress",
			"total_questions": usecase.TotalQuestions(),
		})
	}
}

// NextHandler advances the session and returns the question to ask, or the
// finished marker once every phase is exhausted.
func (s *Server) NextHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		res, err := s.Interviews.Next(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// AnswerHandler records an answer to the pending question. It accepts either
// a JSON body with the answer text or a multipart form with an audio file.
func (s *Server) AnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}

		var answered domain.AnsweredQuestion
		var err error
		if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			r.Body = http.MaxBytesReader(w, r.Body, s.Cfg.MaxUploadMB*1024*1024)
			if perr := r.ParseMultipartForm(s.Cfg.MaxUploadMB * 1024 * 1024); perr != nil {
				writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, perr), nil)
				return
			}
			audioFile, audioHeader, ferr := r.FormFile("audio")
			if ferr != nil {
				writeError(w, r, fmt.Errorf("%w: audio file required", domain.ErrInvalidArgument), map[string]string{"field": "audio"})
				return
			}
			defer func() { _ = audioFile.Close() }()
			answered, err = s.Interviews.SubmitAudioAnswer(r.Context(), id, audioFile, audioHeader.Filename)
		} else {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
			var req struct {
				Text string `json:"text" validate:"required"`
			}
			if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
				writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
				return
			}
			if verr := getValidator().Struct(req); verr != nil {
				writeError(w, r, fmt.Errorf("%w: text is required", domain.ErrInvalidArgument), nil)
				return
			}
			answered, err = s.Interviews.SubmitAnswer(r.Context(), id, req.Text)
		}
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"answer_id": answered.ID,
			"seq":       answered.Seq,
			"phase":     answered.Phase,
			"score":     answered.Score,
			"feedback":  answered.Feedback,
		})
	}
}

// QuestionAudioHandler synthesizes speech for the pending question.
func (s *Server) QuestionAudioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		audio, err := s.Interviews.QuestionAudio(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(audio)
	}
}

func statusLabel(st domain.SessionStatus) string {
	switch st {
	case domain.SessionAssessing:
		return "assessing"
	case domain.SessionAssessed:
		return "completed"
	default:
		return "in_progress"
	}
}

// ResultHandler returns the interview outcome with conditional-request
// support; clients poll it until the assessment completes.
func (s *Server) ResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		view, etag, err := s.Results.Fetch(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if etag != "" && r.Header.Get("If-None-Match") == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":     view.SessionID,
			"status":         statusLabel(view.Status),
			"candidate_name": view.CandidateName,
			"company_name":   view.CompanyName,
			"assessment":     view.Assessment,
			"answers":        view.Answers,
		})
	}
}

// ReadyzHandler probes the DB, Redis and Tika dependencies.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	probes := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"db", s.DBCheck},
		{"redis", s.RedisCheck},
		{"tika", s.TikaCheck},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, len(probes))
		ok := true
		for _, p := range probes {
			if p.fn == nil {
				continue
			}
			if err := p.fn(ctx); err != nil {
				checks = append(checks, check{Name: p.name, OK: false, Details: err.Error()})
				ok = false
			} else {
				checks = append(checks, check{Name: p.name, OK: true})
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
