package usecase

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
)

// QuestionGen produces the next question for a phase. Implementations
// never fail; they degrade to fallbacks.
type QuestionGen interface {
	Generate(ctx domain.Context, s *domain.Session, phase domain.Phase) (domain.Question, string)
}

// AnswerEval scores one answer. Implementations never fail.
type AnswerEval interface {
	Evaluate(ctx domain.Context, q domain.Question, answerText string) (int, string)
}

// Profiling extracts the session context profiles at interview start.
type Profiling interface {
	Extract(ctx domain.Context, resumeText, jobText string) (domain.ResumeProfile, domain.JobProfile, domain.MatchProfile)
}

// TotalQuestions is the fixed length of a full interview.
func TotalQuestions() int {
	n := 0
	for _, q := range domain.PhaseQuota {
		n += q
	}
	return n
}

// NextResult describes what the candidate should see next.
type NextResult struct {
	Finished       bool             `json:"finished"`
	Phase          domain.Phase     `json:"phase"`
	Question       *domain.Question `json:"question,omitempty"`
	QuestionNumber int              `json:"question_number,omitempty"`
	TotalQuestions int              `json:"total_questions"`
}

// InterviewService drives interview sessions: creation, question
// progression and answer intake. All session mutation happens under the
// store's per-session lock; one interview is strictly sequential.
type InterviewService struct {
	Store       domain.SessionStore
	Sessions    domain.SessionRepository
	Answers     domain.AnswerRepository
	Queue       domain.Queue
	Gen         QuestionGen
	Eval        AnswerEval
	Profiles    Profiling
	Transcriber domain.Transcriber
	Synthesizer domain.Synthesizer
}

// NewInterviewService wires an InterviewService.
func NewInterviewService(store domain.SessionStore, sessions domain.SessionRepository, answers domain.AnswerRepository, queue domain.Queue, gen QuestionGen, eval AnswerEval, profiles Profiling, tr domain.Transcriber, syn domain.Synthesizer) *InterviewService {
	return &InterviewService{
		Store: store, Sessions: sessions, Answers: answers, Queue: queue,
		Gen: gen, Eval: eval, Profiles: profiles, Transcriber: tr, Synthesizer: syn,
	}
}

// Start creates a new interview session from resume and job description
// text. Profile extraction failures degrade to defaults and never block
// session creation.
func (svc *InterviewService) Start(ctx domain.Context, candidateName, companyName, resumeText, jobText string) (*domain.Session, error) {
	if candidateName == "" || resumeText == "" || jobText == "" {
		return nil, fmt.Errorf("%w: candidate name, resume and job description are required", domain.ErrInvalidArgument)
	}
	id := ulid.Make().String()
	lg := observability.LoggerFromContext(ctx).With(slog.String("session_id", id))
	ctx = observability.ContextWithLogger(ctx, lg)

	rp, jp, mp := svc.Profiles.Extract(ctx, resumeText, jobText)
	s := domain.NewSession(id, candidateName, companyName)
	s.ResumeProfile, s.JobProfile, s.MatchProfile = rp, jp, mp

	if err := svc.Sessions.Create(ctx, domain.SessionRecord{
		ID:            id,
		CandidateName: candidateName,
		CompanyName:   companyName,
		Status:        domain.SessionActive,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.CreatedAt,
	}); err != nil {
		return nil, err
	}
	if err := svc.Store.Save(ctx, s); err != nil {
		return nil, err
	}
	lg.Info("interview session created",
		slog.String("candidate", candidateName),
		slog.Int("match_percent", mp.MatchPercent))
	return s, nil
}

// Next advances the session to its next question (generating one when
// the bank is exhausted) or finishes the interview. Repeated calls with
// an unanswered question return that same question.
func (svc *InterviewService) Next(ctx domain.Context, sessionID string) (NextResult, error) {
	unlock, err := svc.Store.Lock(ctx, sessionID)
	if err != nil {
		return NextResult{}, err
	}
	defer unlock()

	s, err := svc.Store.Load(ctx, sessionID)
	if err != nil {
		return NextResult{}, err
	}
	ctx = observability.ContextWithSessionID(ctx, sessionID)

	hadPending := s.PendingQuestion != nil
	for {
		step := s.NextStep()
		switch step.Kind {
		case domain.StepFinished:
			if err := svc.finish(ctx, sessionID); err != nil {
				return NextResult{}, err
			}
			if err := svc.Store.Save(ctx, s); err != nil {
				return NextResult{}, err
			}
			return NextResult{Finished: true, Phase: domain.PhaseComplete, TotalQuestions: TotalQuestions()}, nil
		case domain.StepNeedQuestion:
			q, source := svc.Gen.Generate(ctx, s, step.Phase)
			if err := s.PushQuestion(step.Phase, q); err != nil {
				return NextResult{}, err
			}
			observability.ObserveQuestion(string(step.Phase), source)
			continue
		case domain.StepAsk:
			// Generated questions are counted when banked; the scripted
			// opener is counted the first time it is emitted.
			if !hadPending && step.Phase == domain.PhaseProject && len(s.AnswerLog) == 0 {
				observability.ObserveQuestion(string(step.Phase), QuestionSourceScripted)
			}
			if err := svc.Store.Save(ctx, s); err != nil {
				return NextResult{}, err
			}
			return NextResult{
				Phase:          step.Phase,
				Question:       step.Question,
				QuestionNumber: len(s.AnswerLog) + 1,
				TotalQuestions: TotalQuestions(),
			}, nil
		}
	}
}

// finish transitions the durable record to assessing and enqueues the
// aggregation task exactly once.
func (svc *InterviewService) finish(ctx domain.Context, sessionID string) error {
	rec, err := svc.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec.Status != domain.SessionActive {
		return nil
	}
	if err := svc.Sessions.UpdateStatus(ctx, sessionID, domain.SessionAssessing); err != nil {
		return err
	}
	task := domain.AssessmentTask{
		SessionID: sessionID,
		RequestID: observability.RequestIDFromContext(ctx),
	}
	if err := svc.Queue.EnqueueAssessment(ctx, task); err != nil {
		return fmt.Errorf("op=interview.enqueue_assessment: %w", err)
	}
	observability.AssessmentsEnqueuedTotal.Inc()
	observability.LoggerFromContext(ctx).Info("interview complete, assessment enqueued",
		slog.String("session_id", sessionID))
	return nil
}

// SubmitAnswer records a text answer against the pending question,
// evaluates it and persists the result. Submitting without a pending
// question is caller misuse and fails loudly.
func (svc *InterviewService) SubmitAnswer(ctx domain.Context, sessionID, answerText string) (domain.AnsweredQuestion, error) {
	unlock, err := svc.Store.Lock(ctx, sessionID)
	if err != nil {
		return domain.AnsweredQuestion{}, err
	}
	defer unlock()

	s, err := svc.Store.Load(ctx, sessionID)
	if err != nil {
		return domain.AnsweredQuestion{}, err
	}
	if s.PendingQuestion == nil {
		return domain.AnsweredQuestion{}, fmt.Errorf("%w: session %s", domain.ErrNoPendingQuestion, sessionID)
	}
	ctx = observability.ContextWithSessionID(ctx, sessionID)

	score, feedback := svc.Eval.Evaluate(ctx, *s.PendingQuestion, answerText)
	a, err := s.RecordAnswer(answerText, score, feedback)
	if err != nil {
		return domain.AnsweredQuestion{}, err
	}
	observability.ObserveScore(a.Score)

	id, err := svc.Answers.Append(ctx, a)
	if err != nil {
		return domain.AnsweredQuestion{}, err
	}
	a.ID = id
	if err := svc.Store.Save(ctx, s); err != nil {
		return domain.AnsweredQuestion{}, err
	}
	observability.LoggerFromContext(ctx).Info("answer recorded",
		slog.String("session_id", sessionID),
		slog.String("phase", string(a.Phase)),
		slog.Int("seq", a.Seq),
		slog.Int("score", a.Score))
	return a, nil
}

// SubmitAudioAnswer transcribes candidate audio and records the result.
// A transcription failure records the sentinel text and proceeds; the
// candidate is never shown a transcription error.
func (svc *InterviewService) SubmitAudioAnswer(ctx domain.Context, sessionID string, audio io.Reader, filename string) (domain.AnsweredQuestion, error) {
	text, err := svc.Transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		observability.TranscriptionFailuresTotal.Inc()
		observability.LoggerFromContext(ctx).Warn("transcription failed, recording sentinel",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		text = domain.TranscriptionFailedText
	}
	return svc.SubmitAnswer(ctx, sessionID, text)
}

// QuestionAudio synthesizes speech for the pending question.
func (svc *InterviewService) QuestionAudio(ctx domain.Context, sessionID string) ([]byte, error) {
	s, err := svc.Store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.PendingQuestion == nil {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNoPendingQuestion, sessionID)
	}
	audio, err := svc.Synthesizer.Synthesize(ctx, s.PendingQuestion.Text)
	if err != nil {
		return nil, fmt.Errorf("op=interview.synthesize: %w", err)
	}
	return audio, nil
}
