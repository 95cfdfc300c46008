package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-interviewer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/usecase"
)

var evalQuestion = domain.Question{
	Text:               "How does a hash map handle collisions?",
	ExpectedAnswerHint: "Chaining or open addressing with their tradeoffs.",
}

func newEvaluator(aiClient domain.AIClient) *usecase.Evaluator {
	return usecase.NewEvaluator(aiClient, ai.NewRecoverer(nil))
}

func TestEvaluate_ScoreClamping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"above range", `{"score": 150, "feedback": "great"}`, 100},
		{"below range", `{"score": -5, "feedback": "poor"}`, 0},
		{"in range", `{"score": 83, "feedback": "good"}`, 83},
		{"fractional rounds", `{"score": 72.6, "feedback": "good"}`, 73},
		{"string score", `{"score": "85", "feedback": "good"}`, 85},
		{"missing score", `{"feedback": "no number given"}`, usecase.DefaultScore},
		{"non-numeric score", `{"score": "excellent", "feedback": "x"}`, usecase.DefaultScore},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(&stubAI{replies: []string{tc.reply}})
			score, feedback := e.Evaluate(context.Background(), evalQuestion, "an answer")
			assert.Equal(t, tc.want, score)
			assert.NotEmpty(t, feedback)
		})
	}
}

func TestEvaluate_GenerationFailure(t *testing.T) {
	t.Parallel()
	e := newEvaluator(&stubAI{err: errors.New("upstream timeout")})
	score, feedback := e.Evaluate(context.Background(), evalQuestion, "an answer")
	assert.Equal(t, usecase.FailureScore, score)
	assert.NotEmpty(t, feedback)
}

func TestEvaluate_UnrecoverableOutput(t *testing.T) {
	t.Parallel()
	e := newEvaluator(&stubAI{replies: []string{"I cannot evaluate this answer, sorry."}})
	score, _ := e.Evaluate(context.Background(), evalQuestion, "an answer")
	assert.Equal(t, usecase.DefaultScore, score)
}

func TestEvaluate_RepairsMalformedJSON(t *testing.T) {
	t.Parallel()
	// Missing comma between pairs; fixed by the heuristic repair rung.
	e := newEvaluator(&stubAI{replies: []string{`blah {"score": 7 "feedback": "ok"}`}})
	score, feedback := e.Evaluate(context.Background(), evalQuestion, "an answer")
	assert.Equal(t, 7, score)
	assert.Equal(t, "ok", feedback)
}

func TestEvaluate_PromptCarriesQuestionAndAnswer(t *testing.T) {
	t.Parallel()
	stub := &stubAI{replies: []string{`{"score": 60, "feedback": "ok"}`}}
	e := newEvaluator(stub)
	e.Evaluate(context.Background(), evalQuestion, "linked lists per bucket")
	assert.Contains(t, stub.users[0], evalQuestion.Text)
	assert.Contains(t, stub.users[0], evalQuestion.ExpectedAnswerHint)
	assert.Contains(t, stub.users[0], "linked lists per bucket")
}
