package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

// ResultView is the externally visible state of an interview: its status
// plus, once assessed, the full assessment and transcript.
type ResultView struct {
	SessionID     string                    `json:"session_id"`
	Status        domain.SessionStatus      `json:"status"`
	CandidateName string                    `json:"candidate_name"`
	CompanyName   string                    `json:"company_name,omitempty"`
	Assessment    *domain.Assessment        `json:"assessment,omitempty"`
	Answers       []domain.AnsweredQuestion `json:"answers,omitempty"`
}

// ResultService fetches interview outcomes for the result endpoint.
type ResultService struct {
	Sessions    domain.SessionRepository
	Answers     domain.AnswerRepository
	Assessments domain.AssessmentRepository
}

// NewResultService wires a ResultService.
func NewResultService(sessions domain.SessionRepository, answers domain.AnswerRepository, assessments domain.AssessmentRepository) *ResultService {
	return &ResultService{Sessions: sessions, Answers: answers, Assessments: assessments}
}

// Fetch returns the result view and a strong ETag over its content, so
// clients polling for a finished assessment can use conditional requests.
func (s *ResultService) Fetch(ctx domain.Context, sessionID string) (ResultView, string, error) {
	rec, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return ResultView{}, "", err
	}
	view := ResultView{
		SessionID:     rec.ID,
		Status:        rec.Status,
		CandidateName: rec.CandidateName,
		CompanyName:   rec.CompanyName,
	}
	if rec.Status == domain.SessionAssessed {
		assessment, err := s.Assessments.Get(ctx, sessionID)
		if err != nil {
			return ResultView{}, "", fmt.Errorf("op=result.load_assessment: %w", err)
		}
		answers, err := s.Answers.ListBySession(ctx, sessionID)
		if err != nil {
			return ResultView{}, "", fmt.Errorf("op=result.load_answers: %w", err)
		}
		view.Assessment = &assessment
		view.Answers = answers
	}
	return view, etagFor(view), nil
}

func etagFor(v ResultView) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
