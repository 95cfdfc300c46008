package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
)

// Generic qualitative lists used when the summary generation call fails
// entirely. Numeric scores are always computed, never defaulted from here.
var (
	genericStrengths = []string{
		"Engaged with every question in the interview",
		"Communicated answers in a structured way",
		"Showed willingness to reason through unfamiliar problems",
	}
	genericWeaknesses = []string{
		"Some answers lacked concrete supporting detail",
		"Depth on core technical topics was uneven",
		"Limited discussion of measurable outcomes",
	}
	genericImprovements = []string{
		"Prepare specific examples with quantified results",
		"Practice explaining tradeoffs behind technical decisions",
		"Review the core skills listed in the job description",
	}
)

const aggregatorSystem = `You summarize a completed job interview. Based on the transcript, respond with only a JSON object: {"strengths": [3-5 strings], "weaknesses": [3-5 strings], "improvements": [3-5 strings]}. Do not include numeric scores.`

// ProfileContext carries session context into aggregation. Zero values
// are acceptable when the live session has already expired.
type ProfileContext struct {
	CandidateName string
	CompanyName   string
	Resume        domain.ResumeProfile
	Job           domain.JobProfile
	Match         domain.MatchProfile
}

// Aggregator reduces scored answers into the final assessment. Scores are
// deterministic arithmetic means; only the qualitative lists come from
// the model, and a model failure degrades to fixed generic lists.
type Aggregator struct {
	ai  domain.AIClient
	rec domain.JSONRecoverer
}

// NewAggregator constructs an Aggregator.
func NewAggregator(ai domain.AIClient, rec domain.JSONRecoverer) *Aggregator {
	return &Aggregator{ai: ai, rec: rec}
}

// Aggregate computes the assessment for a session's answers.
func (a *Aggregator) Aggregate(ctx domain.Context, sessionID string, pc ProfileContext, answers []domain.AnsweredQuestion) domain.Assessment {
	out := domain.Assessment{
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}

	out.ProjectScore = phaseMean(answers, domain.PhaseProject)
	out.TechnicalScore = phaseMean(answers, domain.PhaseTechnical)
	out.ScenarioScore = phaseMean(answers, domain.PhaseScenario)
	out.BehavioralScore = phaseMean(answers, domain.PhaseBehavioral)

	// Overall is the mean over ALL answers, so phases with more
	// questions weigh proportionally more. No answers at all yields the
	// mid-range policy default.
	if m := meanScore(answers); m != nil {
		out.OverallScore = *m
	} else {
		out.OverallScore = DefaultScore
	}

	out.Strengths, out.Weaknesses, out.Improvements = a.qualitative(ctx, pc, answers)
	return out
}

func (a *Aggregator) qualitative(ctx domain.Context, pc ProfileContext, answers []domain.AnsweredQuestion) (strengths, weaknesses, improvements []string) {
	lg := observability.LoggerFromContext(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "Candidate: %s\nCompany: %s\n", pc.CandidateName, pc.CompanyName)
	fmt.Fprintf(&b, "Resume profile: %s\nJob profile: %s\nSkill match: %s\n",
		mustJSON(pc.Resume), mustJSON(pc.Job), mustJSON(pc.Match))
	b.WriteString("Transcript:\n")
	for _, ans := range answers {
		fmt.Fprintf(&b, "[%s] Q: %s\nA: %s\nScore: %d\n", ans.Phase, ans.QuestionText, ans.AnswerText, ans.Score)
	}

	raw, err := a.ai.ChatJSON(ctx, aggregatorSystem, b.String(), 1024)
	if err != nil {
		lg.Warn("assessment summary call failed, using generic lists",
			slog.String("error", err.Error()))
		return genericStrengths, genericWeaknesses, genericImprovements
	}
	m := a.rec.Recover(ctx, raw, []string{"strengths", "weaknesses", "improvements"})
	if m == nil {
		lg.Warn("assessment summary unrecoverable, using generic lists")
		return genericStrengths, genericWeaknesses, genericImprovements
	}

	strengths = stringList(m["strengths"], genericStrengths)
	weaknesses = stringList(m["weaknesses"], genericWeaknesses)
	improvements = stringList(m["improvements"], genericImprovements)
	return strengths, weaknesses, improvements
}

func phaseMean(answers []domain.AnsweredQuestion, phase domain.Phase) *int {
	var subset []domain.AnsweredQuestion
	for _, a := range answers {
		if a.Phase == phase {
			subset = append(subset, a)
		}
	}
	return meanScore(subset)
}

// meanScore returns the rounded arithmetic mean, or nil for no answers.
func meanScore(answers []domain.AnsweredQuestion) *int {
	if len(answers) == 0 {
		return nil
	}
	sum := 0
	for _, a := range answers {
		sum += a.Score
	}
	m := int(math.Round(float64(sum) / float64(len(answers))))
	return &m
}

func stringList(v any, def []string) []string {
	items, ok := v.([]any)
	if !ok {
		return def
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Aggregation is the port the worker-side service drives.
type Aggregation interface {
	Aggregate(ctx domain.Context, sessionID string, pc ProfileContext, answers []domain.AnsweredQuestion) domain.Assessment
}

// AssessmentService handles queued assessment tasks: it aggregates a
// completed session, persists the result and retires the live state.
type AssessmentService struct {
	Agg         Aggregation
	Store       domain.SessionStore
	Sessions    domain.SessionRepository
	Answers     domain.AnswerRepository
	Assessments domain.AssessmentRepository
}

// NewAssessmentService wires an AssessmentService.
func NewAssessmentService(agg Aggregation, store domain.SessionStore, sessions domain.SessionRepository, answers domain.AnswerRepository, assessments domain.AssessmentRepository) *AssessmentService {
	return &AssessmentService{Agg: agg, Store: store, Sessions: sessions, Answers: answers, Assessments: assessments}
}

// HandleAssessment processes one task. It is idempotent: an already
// assessed session is a no-op.
func (s *AssessmentService) HandleAssessment(ctx domain.Context, t domain.AssessmentTask) error {
	lg := observability.LoggerFromContext(ctx).With(
		slog.String("session_id", t.SessionID),
		slog.String("request_id", t.RequestID))
	ctx = observability.ContextWithLogger(ctx, lg)

	rec, err := s.Sessions.Get(ctx, t.SessionID)
	if err != nil {
		return fmt.Errorf("op=assessment.load_session: %w", err)
	}
	if rec.Status == domain.SessionAssessed {
		lg.Info("session already assessed, skipping")
		return nil
	}

	answers, err := s.Answers.ListBySession(ctx, t.SessionID)
	if err != nil {
		return fmt.Errorf("op=assessment.load_answers: %w", err)
	}

	pc := ProfileContext{CandidateName: rec.CandidateName, CompanyName: rec.CompanyName}
	if live, err := s.Store.Load(ctx, t.SessionID); err == nil && live != nil {
		pc.Resume = live.ResumeProfile
		pc.Job = live.JobProfile
		pc.Match = live.MatchProfile
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		lg.Warn("live session unavailable for assessment context",
			slog.String("error", err.Error()))
	}

	assessment := s.Agg.Aggregate(ctx, t.SessionID, pc, answers)
	if err := s.Assessments.Upsert(ctx, assessment); err != nil {
		return fmt.Errorf("op=assessment.upsert: %w", err)
	}
	if err := s.Sessions.UpdateStatus(ctx, t.SessionID, domain.SessionAssessed); err != nil {
		return fmt.Errorf("op=assessment.mark_assessed: %w", err)
	}
	if err := s.Store.Delete(ctx, t.SessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		lg.Warn("failed to delete live session state", slog.String("error", err.Error()))
	}
	lg.Info("assessment completed", slog.Int("overall_score", assessment.OverallScore))
	return nil
}
