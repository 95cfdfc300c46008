package usecase

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
)

// Score policy constants. Evaluation never fails: unreliable model output
// degrades to DefaultScore, a failed generation call to FailureScore.
const (
	DefaultScore = 50
	FailureScore = 10
)

const defaultFeedback = "The answer was received but could not be assessed in detail."
const failureFeedback = "The answer could not be evaluated due to a temporary issue; a conservative score was assigned."

const evaluatorSystem = `You are a strict but fair interview evaluator. Score the candidate's answer against the question and the expected answer on a 0-100 scale. Respond with only a JSON object: {"score": <0-100>, "feedback": "<2-3 sentences of concrete feedback>"}`

// Evaluator scores one answer against its question.
type Evaluator struct {
	ai  domain.AIClient
	rec domain.JSONRecoverer
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(ai domain.AIClient, rec domain.JSONRecoverer) *Evaluator {
	return &Evaluator{ai: ai, rec: rec}
}

// Evaluate returns a clamped integer score in [0,100] and feedback text.
// It always returns a usable value so the interview can proceed.
func (e *Evaluator) Evaluate(ctx domain.Context, q domain.Question, answerText string) (int, string) {
	lg := observability.LoggerFromContext(ctx)

	user := fmt.Sprintf("Question: %s\nExpected answer: %s\nCandidate answer: %s",
		q.Text, q.ExpectedAnswerHint, answerText)
	raw, err := e.ai.ChatJSON(ctx, evaluatorSystem, user, 512)
	if err != nil {
		lg.Warn("answer evaluation call failed",
			slog.String("error", err.Error()))
		return FailureScore, failureFeedback
	}

	m := e.rec.Recover(ctx, raw, []string{"score", "feedback"})
	if m == nil {
		lg.Warn("evaluation output unrecoverable, using default score")
		return DefaultScore, defaultFeedback
	}

	score := coerceScore(m["score"], DefaultScore)
	feedback, _ := m["feedback"].(string)
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		feedback = defaultFeedback
	}
	return score, feedback
}

// coerceScore converts an arbitrary recovered value to an int clamped to
// [0,100], falling back to def for non-numeric input.
func coerceScore(v any, def int) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) {
		return def
	}
	n := int(math.Round(f))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
