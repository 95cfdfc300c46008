package domain

import (
	"fmt"
	"time"
)

// Phase is one of the ordered interview categories plus the terminal state.
type Phase string

const (
	PhaseProject    Phase = "project"
	PhaseTechnical  Phase = "technical"
	PhaseScenario   Phase = "scenario"
	PhaseBehavioral Phase = "behavioral"
	PhaseComplete   Phase = "complete"
)

// PhaseOrder is the fixed progression. No phase is skipped or revisited.
var PhaseOrder = []Phase{PhaseProject, PhaseTechnical, PhaseScenario, PhaseBehavioral}

// PhaseQuota is the fixed per-phase question budget.
var PhaseQuota = map[Phase]int{
	PhaseProject:    3,
	PhaseTechnical:  4,
	PhaseScenario:   2,
	PhaseBehavioral: 2,
}

// OpeningQuestion is the scripted first question of the project phase. It
// is seeded into the bank at session creation so the generator is never
// consulted for it.
var OpeningQuestion = Question{
	Text:               "Tell me about yourself and your background.",
	ExpectedAnswerHint: "A concise professional summary covering experience, key skills and motivation.",
}

// StepKind classifies the outcome of NextStep.
type StepKind int

const (
	// StepAsk carries the question to put to the candidate.
	StepAsk StepKind = iota
	// StepNeedQuestion asks the caller to generate one question for
	// Step.Phase, append it via PushQuestion, and call NextStep again.
	StepNeedQuestion
	// StepFinished means the interview reached the terminal phase.
	StepFinished
)

// Step is the result of one NextStep call.
type Step struct {
	Kind     StepKind
	Phase    Phase
	Question *Question
}

// Session is the live state of one interview. One session is driven
// strictly sequentially; callers serialize access via SessionStore.Lock.
type Session struct {
	ID            string `json:"id"`
	CandidateName string `json:"candidate_name"`
	CompanyName   string `json:"company_name"`

	ResumeProfile ResumeProfile `json:"resume_profile"`
	JobProfile    JobProfile    `json:"job_profile"`
	MatchProfile  MatchProfile  `json:"match_profile"`

	Phase              Phase                `json:"phase"`
	PhaseQuestionIndex int                  `json:"phase_question_index"`
	QuestionBank       map[Phase][]Question `json:"question_bank"`
	AnswerLog          []AnsweredQuestion   `json:"answer_log"`
	PendingQuestion    *Question            `json:"pending_question,omitempty"`
	FallbackUsed       map[Phase]int        `json:"fallback_used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a fresh session in the first phase with the scripted
// opener already banked.
func NewSession(id, candidateName, companyName string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            id,
		CandidateName: candidateName,
		CompanyName:   companyName,
		Phase:         PhaseProject,
		QuestionBank: map[Phase][]Question{
			PhaseProject: {OpeningQuestion},
		},
		FallbackUsed: map[Phase]int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NextStep decides what happens next. With a question already pending it
// returns that same question again; repeated calls without an intervening
// RecordAnswer never generate duplicates. The index increments when a
// question is emitted, not when it is answered, for every phase.
func (s *Session) NextStep() Step {
	if s.PendingQuestion != nil {
		q := *s.PendingQuestion
		return Step{Kind: StepAsk, Phase: s.Phase, Question: &q}
	}
	for {
		if s.Phase == PhaseComplete {
			return Step{Kind: StepFinished, Phase: PhaseComplete}
		}
		if s.PhaseQuestionIndex < PhaseQuota[s.Phase] {
			bank := s.QuestionBank[s.Phase]
			if len(bank) <= s.PhaseQuestionIndex {
				return Step{Kind: StepNeedQuestion, Phase: s.Phase}
			}
			q := bank[s.PhaseQuestionIndex]
			s.PendingQuestion = &q
			s.PhaseQuestionIndex++
			s.UpdatedAt = time.Now().UTC()
			return Step{Kind: StepAsk, Phase: s.Phase, Question: &q}
		}
		s.Phase = nextPhase(s.Phase)
		s.PhaseQuestionIndex = 0
	}
}

func nextPhase(p Phase) Phase {
	for i, cur := range PhaseOrder {
		if cur == p {
			if i+1 < len(PhaseOrder) {
				return PhaseOrder[i+1]
			}
			return PhaseComplete
		}
	}
	return PhaseComplete
}

// PushQuestion appends a generated question to the bank for the given
// phase. Text must be non-empty; an empty hint gets a generic placeholder.
func (s *Session) PushQuestion(phase Phase, q Question) error {
	if q.Text == "" {
		return fmt.Errorf("%w: question text empty", ErrInvalidArgument)
	}
	if q.ExpectedAnswerHint == "" {
		q.ExpectedAnswerHint = "A clear, relevant and well-structured answer."
	}
	if s.QuestionBank == nil {
		s.QuestionBank = map[Phase][]Question{}
	}
	s.QuestionBank[phase] = append(s.QuestionBank[phase], q)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordAnswer folds an evaluated answer into the log and clears the
// pending question. It fails loudly when no question is pending.
func (s *Session) RecordAnswer(answerText string, score int, feedback string) (AnsweredQuestion, error) {
	if s.PendingQuestion == nil {
		return AnsweredQuestion{}, fmt.Errorf("%w: session %s", ErrNoPendingQuestion, s.ID)
	}
	a := AnsweredQuestion{
		SessionID:          s.ID,
		Seq:                len(s.AnswerLog) + 1,
		Phase:              s.Phase,
		QuestionText:       s.PendingQuestion.Text,
		ExpectedAnswerHint: s.PendingQuestion.ExpectedAnswerHint,
		AnswerText:         answerText,
		Score:              score,
		Feedback:           feedback,
		CreatedAt:          time.Now().UTC(),
	}
	s.AnswerLog = append(s.AnswerLog, a)
	s.PendingQuestion = nil
	s.UpdatedAt = a.CreatedAt
	return a, nil
}

// PhaseAnswers returns the answers recorded for one phase, in order.
func (s *Session) PhaseAnswers(phase Phase) []AnsweredQuestion {
	var out []AnsweredQuestion
	for _, a := range s.AnswerLog {
		if a.Phase == phase {
			out = append(out, a)
		}
	}
	return out
}
