package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

type fixerAI struct {
	reply string
	err   error
	calls int
}

func (f *fixerAI) ChatJSON(_ domain.Context, _, _ string, _ int) (string, error) {
	f.calls++
	return f.reply, f.err
}

func TestSliceParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"plain object", `{"score": 90}`, true},
		{"prose around object", `Sure! Here it is: {"score": 90} hope that helps`, true},
		{"markdown fenced", "```json\n{\"score\": 90}\n```", true},
		{"no braces", `score: 90`, false},
		{"broken object", `{"score": }`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, ok := SliceParse(tc.raw)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.EqualValues(t, 90, m["score"])
			}
		})
	}
}

func TestRepairJSON_MissingCommaBetweenPairs(t *testing.T) {
	t.Parallel()
	raw := `blah {"score": 7 "feedback": "ok"}`
	m, ok := SliceParse(RepairJSON(raw))
	require.True(t, ok)
	assert.EqualValues(t, 7, m["score"])
	assert.Equal(t, "ok", m["feedback"])
}

func TestRepairJSON_Heuristics(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			"single quotes",
			`{'score': 5, 'feedback': 'fine'}`,
			map[string]any{"score": float64(5), "feedback": "fine"},
		},
		{
			"trailing comma",
			`{"score": 5, "feedback": "fine",}`,
			map[string]any{"score": float64(5), "feedback": "fine"},
		},
		{
			"unquoted keys",
			`{score: 5, feedback: "fine"}`,
			map[string]any{"score": float64(5), "feedback": "fine"},
		},
		{
			"missing comma after closing brace",
			`{"inner": {"a": 1} "feedback": "fine"}`,
			map[string]any{"inner": map[string]any{"a": float64(1)}, "feedback": "fine"},
		},
		{
			"control characters",
			"{\"feedback\": \"fine\"\x00\x01}",
			map[string]any{"feedback": "fine"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, ok := SliceParse(RepairJSON(tc.raw))
			require.True(t, ok)
			assert.Equal(t, tc.want, m)
		})
	}
}

func TestRecover_DirectParseSkipsLadder(t *testing.T) {
	t.Parallel()
	fx := &fixerAI{}
	r := NewRecoverer(fx)
	m := r.Recover(context.Background(), `{"score": 80, "feedback": "good"}`, []string{"score", "feedback"})
	require.NotNil(t, m)
	assert.EqualValues(t, 80, m["score"])
	assert.Zero(t, fx.calls, "no fix round-trip for parsable input")
}

func TestRecover_ModelFixRung(t *testing.T) {
	t.Parallel()
	fx := &fixerAI{reply: `{"score": 42, "feedback": "fixed"}`}
	r := NewRecoverer(fx)
	// Not repairable by slicing alone and shaped to dodge the heuristics.
	m := r.Recover(context.Background(), `score is forty-two {oops`, []string{"score"})
	require.NotNil(t, m)
	assert.EqualValues(t, 42, m["score"])
	assert.Equal(t, 1, fx.calls)
}

func TestRecover_FieldExtractionRung(t *testing.T) {
	t.Parallel()
	fx := &fixerAI{err: errors.New("upstream down")}
	r := NewRecoverer(fx)
	raw := `The candidate scored well. "score": 88 and "feedback": "strong grasp of tradeoffs" overall`
	m := r.Recover(context.Background(), raw, []string{"score", "feedback", "question"})
	require.NotNil(t, m)
	assert.EqualValues(t, 88, m["score"])
	assert.Equal(t, "strong grasp of tradeoffs", m["feedback"])
	assert.Equal(t, "", m["question"], "unrecovered field defaults to neutral value")
}

func TestRecover_ListFieldExtraction(t *testing.T) {
	t.Parallel()
	r := NewRecoverer(nil)
	raw := `"strengths": ["communication", "system design"] trailing junk`
	m := r.Recover(context.Background(), raw, []string{"strengths"})
	require.NotNil(t, m)
	assert.Equal(t, []any{"communication", "system design"}, m["strengths"])
}

func TestRecover_TotalFailureReturnsNil(t *testing.T) {
	t.Parallel()
	r := NewRecoverer(&fixerAI{err: errors.New("boom")})
	assert.Nil(t, r.Recover(context.Background(), "nothing structured here", []string{"score"}))
	assert.Nil(t, r.Recover(context.Background(), "", []string{"score"}))
}
