package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

func TestNewSession_SeedsScriptedOpener(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")
	require.Equal(t, domain.PhaseProject, s.Phase)
	require.Len(t, s.QuestionBank[domain.PhaseProject], 1)
	assert.Equal(t, domain.OpeningQuestion, s.QuestionBank[domain.PhaseProject][0])

	step := s.NextStep()
	require.Equal(t, domain.StepAsk, step.Kind)
	assert.Equal(t, domain.OpeningQuestion.Text, step.Question.Text)
	assert.Equal(t, 1, s.PhaseQuestionIndex)
}

func TestNextStep_NeedQuestionWhenBankExhausted(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")
	s.QuestionBank = map[domain.Phase][]domain.Question{}

	step := s.NextStep()
	require.Equal(t, domain.StepNeedQuestion, step.Kind)
	assert.Equal(t, domain.PhaseProject, step.Phase)
	assert.Equal(t, 0, s.PhaseQuestionIndex)
}

func TestNextStep_IdempotentWhilePending(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")

	first := s.NextStep()
	require.Equal(t, domain.StepAsk, first.Kind)
	idx := s.PhaseQuestionIndex

	for i := 0; i < 3; i++ {
		again := s.NextStep()
		require.Equal(t, domain.StepAsk, again.Kind)
		assert.Equal(t, first.Question.Text, again.Question.Text)
		assert.Equal(t, idx, s.PhaseQuestionIndex)
	}
}

func TestRecordAnswer_WithoutPendingFailsLoudly(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")

	_, err := s.RecordAnswer("hello", 50, "n/a")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoPendingQuestion)
	assert.Empty(t, s.AnswerLog)
}

func TestRecordAnswer_AppendsAndClearsPending(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")
	step := s.NextStep()
	require.Equal(t, domain.StepAsk, step.Kind)

	a, err := s.RecordAnswer("I built a recommender system", 82, "solid")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Seq)
	assert.Equal(t, domain.PhaseProject, a.Phase)
	assert.Equal(t, step.Question.Text, a.QuestionText)
	assert.Equal(t, 82, a.Score)
	assert.Nil(t, s.PendingQuestion)
	require.Len(t, s.AnswerLog, 1)
}

func TestPushQuestion_Validation(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")

	err := s.PushQuestion(domain.PhaseTechnical, domain.Question{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	require.NoError(t, s.PushQuestion(domain.PhaseTechnical, domain.Question{Text: "Explain goroutine scheduling."}))
	got := s.QuestionBank[domain.PhaseTechnical]
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ExpectedAnswerHint)
}

// Drives a whole interview and checks the fixed phase order, quota bounds
// and index resets along the way.
func TestSession_FullProgression(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")

	wantOrder := []domain.Phase{
		domain.PhaseProject, domain.PhaseTechnical,
		domain.PhaseScenario, domain.PhaseBehavioral,
	}
	var seen []domain.Phase
	asked := 0
	for {
		step := s.NextStep()
		if step.Kind == domain.StepFinished {
			break
		}
		if step.Kind == domain.StepNeedQuestion {
			require.NoError(t, s.PushQuestion(step.Phase, domain.Question{
				Text: "generated question",
			}))
			continue
		}
		require.Equal(t, domain.StepAsk, step.Kind)
		if len(seen) == 0 || seen[len(seen)-1] != step.Phase {
			seen = append(seen, step.Phase)
			assert.Equal(t, 1, s.PhaseQuestionIndex, "index resets on phase entry")
		}
		assert.LessOrEqual(t, s.PhaseQuestionIndex, domain.PhaseQuota[step.Phase])
		asked++
		_, err := s.RecordAnswer("an answer", 70, "ok")
		require.NoError(t, err)
	}

	assert.Equal(t, wantOrder, seen)
	assert.Equal(t, 3+4+2+2, asked)
	assert.Equal(t, domain.PhaseComplete, s.Phase)
	assert.Len(t, s.AnswerLog, 11)

	// Terminal state is stable.
	assert.Equal(t, domain.StepFinished, s.NextStep().Kind)
}

func TestSession_ProjectQuotaThenTechnicalReset(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")

	for i := 0; i < domain.PhaseQuota[domain.PhaseProject]; i++ {
		step := s.NextStep()
		if step.Kind == domain.StepNeedQuestion {
			require.NoError(t, s.PushQuestion(step.Phase, domain.Question{Text: "q"}))
			step = s.NextStep()
		}
		require.Equal(t, domain.StepAsk, step.Kind)
		require.Equal(t, domain.PhaseProject, step.Phase)
		_, err := s.RecordAnswer("answer", 60, "ok")
		require.NoError(t, err)
	}

	step := s.NextStep()
	require.Equal(t, domain.StepNeedQuestion, step.Kind)
	assert.Equal(t, domain.PhaseTechnical, step.Phase)
	assert.Equal(t, domain.PhaseTechnical, s.Phase)
	assert.Equal(t, 0, s.PhaseQuestionIndex)
}

func TestPhaseAnswers_FiltersByPhase(t *testing.T) {
	t.Parallel()
	s := domain.NewSession("s1", "Ada", "Acme")
	s.AnswerLog = []domain.AnsweredQuestion{
		{Phase: domain.PhaseProject, Score: 80},
		{Phase: domain.PhaseTechnical, Score: 70},
		{Phase: domain.PhaseProject, Score: 60},
	}
	got := s.PhaseAnswers(domain.PhaseProject)
	require.Len(t, got, 2)
	assert.Equal(t, 80, got[0].Score)
	assert.Equal(t, 60, got[1].Score)
	assert.Nil(t, s.PhaseAnswers(domain.PhaseScenario))
}
