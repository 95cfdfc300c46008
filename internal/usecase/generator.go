// Package usecase contains the application services driving interviews:
// question generation, answer evaluation, session orchestration, profile
// extraction, assessment aggregation and result retrieval.
package usecase

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
)

// Question sources reported to metrics.
const (
	QuestionSourceScripted  = "scripted"
	QuestionSourceGenerated = "generated"
	QuestionSourceFallback  = "fallback"
)

// TokenTrimmer cuts text down to a token budget. Satisfied by
// tokencount.Counter.
type TokenTrimmer interface {
	TrimToBudget(text, model string, budget int) string
}

//go:embed fallbacks.yaml
var fallbackYAML []byte

type fallbackQuestion struct {
	Text string `yaml:"text"`
	Hint string `yaml:"hint"`
}

func loadFallbacks() map[domain.Phase][]domain.Question {
	var raw map[string][]fallbackQuestion
	if err := yaml.Unmarshal(fallbackYAML, &raw); err != nil {
		// The bank is embedded at build time; failing to parse it is a
		// packaging bug, not a runtime condition.
		panic(fmt.Sprintf("parse embedded fallback bank: %v", err))
	}
	out := make(map[domain.Phase][]domain.Question, len(raw))
	for phase, qs := range raw {
		for _, q := range qs {
			out[domain.Phase(phase)] = append(out[domain.Phase(phase)], domain.Question{
				Text:               q.Text,
				ExpectedAnswerHint: q.Hint,
			})
		}
	}
	return out
}

var fallbackBank = loadFallbacks()

// phaseStrategy parameterizes prompting per phase. All strategies share
// one output contract: a JSON object with question and expected_answer.
type phaseStrategy struct {
	system string
	frame  string
	// adaptive phases fold prior same-phase answers with their scores
	// into the prompt so the model can escalate or pivot.
	adaptive bool
}

var phaseStrategies = map[domain.Phase]phaseStrategy{
	domain.PhaseProject: {
		system:   "You are a senior interviewer exploring a candidate's past projects.",
		frame:    "Ask one question anchored to a specific project or skill from the resume. Probe the candidate's personal contribution and decisions.",
		adaptive: true,
	},
	domain.PhaseTechnical: {
		system:   "You are a senior interviewer assessing technical depth.",
		frame:    "Ask one technical question testing both theoretical understanding and practical application of a skill the job requires. If the previous answer scored high, go deeper on the same topic; if it scored low, pivot to a different required skill.",
		adaptive: true,
	},
	domain.PhaseScenario: {
		system:   "You are a senior interviewer posing realistic work situations.",
		frame:    "Pose one realistic workplace scenario relevant to the role's responsibilities and ask how the candidate would handle it.",
		adaptive: false,
	},
	domain.PhaseBehavioral: {
		system:   "You are an interviewer assessing soft skills and culture fit.",
		frame:    "Ask one behavioral question tied to the company and its domain, exploring collaboration, communication or ownership.",
		adaptive: false,
	},
}

const outputContract = `Respond with only a JSON object: {"question": "<the question>", "expected_answer": "<short description of a strong answer>"}`

// QuestionGenerator produces one question at a time for the current
// phase. Generation always succeeds from the caller's perspective: any
// failure degrades to the phase's fallback bank.
type QuestionGenerator struct {
	ai       domain.AIClient
	rec      domain.JSONRecoverer
	trimmer  TokenTrimmer
	model    string
	tokenCap int
}

// NewQuestionGenerator constructs a QuestionGenerator. trimmer may be nil
// to disable prompt budgeting.
func NewQuestionGenerator(ai domain.AIClient, rec domain.JSONRecoverer, trimmer TokenTrimmer, model string, tokenCap int) *QuestionGenerator {
	if tokenCap <= 0 {
		tokenCap = 2000
	}
	return &QuestionGenerator{ai: ai, rec: rec, trimmer: trimmer, model: model, tokenCap: tokenCap}
}

// Generate returns the next question for phase plus its source
// ("generated" or "fallback"). It never returns an error.
func (g *QuestionGenerator) Generate(ctx domain.Context, s *domain.Session, phase domain.Phase) (domain.Question, string) {
	lg := observability.LoggerFromContext(ctx)
	strat, ok := phaseStrategies[phase]
	if !ok {
		return g.fallback(s, phase), QuestionSourceFallback
	}

	user := g.buildUserPrompt(s, phase, strat)
	raw, err := g.ai.ChatJSON(ctx, strat.system+" "+outputContract, user, 512)
	if err != nil {
		lg.Warn("question generation failed, using fallback",
			slog.String("phase", string(phase)),
			slog.String("error", err.Error()))
		return g.fallback(s, phase), QuestionSourceFallback
	}

	m := g.rec.Recover(ctx, raw, []string{"question", "expected_answer"})
	if m == nil {
		lg.Warn("question output unrecoverable, using fallback",
			slog.String("phase", string(phase)))
		return g.fallback(s, phase), QuestionSourceFallback
	}
	text, _ := m["question"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return g.fallback(s, phase), QuestionSourceFallback
	}
	hint, _ := m["expected_answer"].(string)
	return domain.Question{Text: text, ExpectedAnswerHint: strings.TrimSpace(hint)}, QuestionSourceGenerated
}

func (g *QuestionGenerator) buildUserPrompt(s *domain.Session, phase domain.Phase, strat phaseStrategy) string {
	var b strings.Builder
	b.WriteString("Candidate: ")
	b.WriteString(s.CandidateName)
	b.WriteString("\nCompany: ")
	b.WriteString(s.CompanyName)
	b.WriteString("\nResume profile: ")
	b.WriteString(mustJSON(s.ResumeProfile))
	b.WriteString("\nJob profile: ")
	b.WriteString(mustJSON(s.JobProfile))
	b.WriteString("\nSkill match: ")
	b.WriteString(mustJSON(s.MatchProfile))
	if strat.adaptive {
		if prior := g.priorAnswersBlock(s, phase); prior != "" {
			b.WriteString("\nEarlier answers in this phase (most recent last):\n")
			b.WriteString(prior)
		}
	}
	b.WriteString("\n\n")
	b.WriteString(strat.frame)
	return b.String()
}

func (g *QuestionGenerator) priorAnswersBlock(s *domain.Session, phase domain.Phase) string {
	answers := s.PhaseAnswers(phase)
	if len(answers) == 0 {
		return ""
	}
	var b strings.Builder
	for _, a := range answers {
		fmt.Fprintf(&b, "Q: %s\nA: %s\nScore: %d\n", a.QuestionText, a.AnswerText, a.Score)
	}
	block := b.String()
	if g.trimmer != nil {
		block = g.trimmer.TrimToBudget(block, g.model, g.tokenCap)
	}
	return block
}

// fallback returns the next unused fallback question for the phase,
// cycling when the list is exhausted.
func (g *QuestionGenerator) fallback(s *domain.Session, phase domain.Phase) domain.Question {
	list := fallbackBank[phase]
	if len(list) == 0 {
		return domain.Question{
			Text:               "Tell me more about your experience relevant to this role.",
			ExpectedAnswerHint: "A clear, relevant and well-structured answer.",
		}
	}
	if s.FallbackUsed == nil {
		s.FallbackUsed = map[domain.Phase]int{}
	}
	q := list[s.FallbackUsed[phase]%len(list)]
	s.FallbackUsed[phase]++
	return q
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
