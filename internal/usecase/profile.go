package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
)

const (
	resumeProfileSystem = `You extract structured facts from resumes. Respond with only a JSON object: {"skills": [strings], "projects": [strings], "experience": "<one line summarizing years and seniority>"}`
	jobProfileSystem    = `You extract structured facts from job descriptions. Respond with only a JSON object: {"required_skills": [strings], "responsibilities": [strings], "domain": "<the business/technical domain>"}`
	matchProfileSystem  = `You compare a candidate profile with a job profile. Respond with only a JSON object: {"matching_skills": [strings], "missing_skills": [strings], "match_percent": <0-100>, "experience_rating": "<short phrase>"}`
)

// ProfileExtractor builds the immutable resume/job/match context at
// session start. Extraction degrades to neutral defaults on any model
// failure; session creation never fails on model output.
type ProfileExtractor struct {
	ai       domain.AIClient
	rec      domain.JSONRecoverer
	trimmer  TokenTrimmer
	model    string
	tokenCap int
}

// NewProfileExtractor constructs a ProfileExtractor.
func NewProfileExtractor(ai domain.AIClient, rec domain.JSONRecoverer, trimmer TokenTrimmer, model string, tokenCap int) *ProfileExtractor {
	if tokenCap <= 0 {
		tokenCap = 2000
	}
	return &ProfileExtractor{ai: ai, rec: rec, trimmer: trimmer, model: model, tokenCap: tokenCap}
}

// Extract produces the three context profiles from raw resume and job
// description text.
func (p *ProfileExtractor) Extract(ctx domain.Context, resumeText, jobText string) (domain.ResumeProfile, domain.JobProfile, domain.MatchProfile) {
	resumeText = p.trim(resumeText)
	jobText = p.trim(jobText)

	rp := p.extractResume(ctx, resumeText)
	jp := p.extractJob(ctx, jobText)
	mp := p.extractMatch(ctx, rp, jp)
	return rp, jp, mp
}

func (p *ProfileExtractor) trim(text string) string {
	if p.trimmer == nil {
		return text
	}
	return p.trimmer.TrimToBudget(text, p.model, p.tokenCap)
}

func (p *ProfileExtractor) extractResume(ctx domain.Context, resumeText string) domain.ResumeProfile {
	out := domain.ResumeProfile{Experience: "not specified"}
	m := p.call(ctx, resumeProfileSystem, "Resume:\n"+resumeText,
		[]string{"skills", "projects", "experience"})
	if m == nil {
		return out
	}
	out.Skills = stringList(m["skills"], nil)
	out.Projects = stringList(m["projects"], nil)
	if s, ok := m["experience"].(string); ok && strings.TrimSpace(s) != "" {
		out.Experience = strings.TrimSpace(s)
	}
	return out
}

func (p *ProfileExtractor) extractJob(ctx domain.Context, jobText string) domain.JobProfile {
	out := domain.JobProfile{Domain: "general software engineering"}
	m := p.call(ctx, jobProfileSystem, "Job description:\n"+jobText,
		[]string{"required_skills", "responsibilities", "domain"})
	if m == nil {
		return out
	}
	out.RequiredSkills = stringList(m["required_skills"], nil)
	out.Responsibilities = stringList(m["responsibilities"], nil)
	if s, ok := m["domain"].(string); ok && strings.TrimSpace(s) != "" {
		out.Domain = strings.TrimSpace(s)
	}
	return out
}

func (p *ProfileExtractor) extractMatch(ctx domain.Context, rp domain.ResumeProfile, jp domain.JobProfile) domain.MatchProfile {
	out := domain.MatchProfile{MatchPercent: 50, ExperienceRating: "not rated"}
	user := fmt.Sprintf("Candidate profile: %s\nJob profile: %s", mustJSON(rp), mustJSON(jp))
	m := p.call(ctx, matchProfileSystem, user,
		[]string{"matching_skills", "missing_skills", "match_percent", "experience_rating"})
	if m == nil {
		return out
	}
	out.MatchingSkills = stringList(m["matching_skills"], nil)
	out.MissingSkills = stringList(m["missing_skills"], nil)
	out.MatchPercent = coerceScore(m["match_percent"], 50)
	if s, ok := m["experience_rating"].(string); ok && strings.TrimSpace(s) != "" {
		out.ExperienceRating = strings.TrimSpace(s)
	}
	return out
}

func (p *ProfileExtractor) call(ctx domain.Context, system, user string, fields []string) map[string]any {
	lg := observability.LoggerFromContext(ctx)
	raw, err := p.ai.ChatJSON(ctx, system, user, 768)
	if err != nil {
		lg.Warn("profile extraction call failed, using defaults",
			slog.String("error", err.Error()))
		return nil
	}
	m := p.rec.Recover(ctx, raw, fields)
	if m == nil {
		lg.Warn("profile extraction output unrecoverable, using defaults")
	}
	return m
}
