// Package domain contains core entities, ports and error types for the
// AI interviewer service.
//
// It is dependency-free: adapters implement the ports declared here and
// usecases orchestrate them. The interview progression rules themselves
// live in session.go.
package domain

import (
	"context"
	"errors"
	"io"
	"time"
)

// Context is an alias to context.Context to keep domain signatures short.
type Context = context.Context

// Sentinel errors used across adapters and usecases. Wrap with
// fmt.Errorf("%w: ...") to add operation context.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	// ErrNoPendingQuestion signals caller misuse: an answer was submitted
	// while no question was outstanding. This is the one error class that
	// is never absorbed by defaults.
	ErrNoPendingQuestion = errors.New("no pending question")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// SessionStatus tracks the persisted lifecycle of an interview.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionAssessing SessionStatus = "assessing"
	SessionAssessed  SessionStatus = "assessed"
)

// TranscriptionFailedText is recorded as the answer when speech-to-text
// fails. The interview proceeds; the evaluator scores it like any answer.
const TranscriptionFailedText = "error"

// ResumeProfile is the structured summary extracted from a resume at
// session start. Immutable afterwards.
type ResumeProfile struct {
	Skills     []string `json:"skills"`
	Projects   []string `json:"projects"`
	Experience string   `json:"experience"`
}

// JobProfile is the structured summary extracted from a job description.
type JobProfile struct {
	RequiredSkills   []string `json:"required_skills"`
	Responsibilities []string `json:"responsibilities"`
	Domain           string   `json:"domain"`
}

// MatchProfile relates a resume to a job description.
type MatchProfile struct {
	MatchingSkills   []string `json:"matching_skills"`
	MissingSkills    []string `json:"missing_skills"`
	MatchPercent     int      `json:"match_percent"`
	ExperienceRating string   `json:"experience_rating"`
}

// Question is one generated (or scripted) interview question.
type Question struct {
	Text               string `json:"text"`
	ExpectedAnswerHint string `json:"expected_answer_hint"`
}

// AnsweredQuestion is the immutable record created when a pending question
// receives an answer. Seq is the 1-based position within the session.
type AnsweredQuestion struct {
	ID                 string    `json:"id"`
	SessionID          string    `json:"session_id"`
	Seq                int       `json:"seq"`
	Phase              Phase     `json:"phase"`
	QuestionText       string    `json:"question_text"`
	ExpectedAnswerHint string    `json:"expected_answer_hint"`
	AnswerText         string    `json:"answer_text"`
	Score              int       `json:"score"`
	Feedback           string    `json:"feedback"`
	CreatedAt          time.Time `json:"created_at"`
}

// Assessment is the final aggregate produced once a session completes.
// Per-phase scores are nil for phases with no scored answers.
type Assessment struct {
	SessionID       string    `json:"session_id"`
	ProjectScore    *int      `json:"project_score"`
	TechnicalScore  *int      `json:"technical_score"`
	ScenarioScore   *int      `json:"scenario_score"`
	BehavioralScore *int      `json:"behavioral_score"`
	OverallScore    int       `json:"overall_score"`
	Strengths       []string  `json:"strengths"`
	Weaknesses      []string  `json:"weaknesses"`
	Improvements    []string  `json:"improvements"`
	CreatedAt       time.Time `json:"created_at"`
}

// SessionRecord is the durable row for a session (the live state machine
// payload lives in the SessionStore).
type SessionRecord struct {
	ID            string        `json:"id"`
	CandidateName string        `json:"candidate_name"`
	CompanyName   string        `json:"company_name"`
	Status        SessionStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// AssessmentTask is the queue payload asking the worker to aggregate a
// completed session.
type AssessmentTask struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id,omitempty"`
}

// AIClient is the sole generative capability the core depends on. ChatJSON
// performs a single attempt; callers absorb failures with defaults.
type AIClient interface {
	ChatJSON(ctx Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// JSONRecoverer extracts a JSON object from unreliable model text.
// Returns nil when nothing could be recovered; callers substitute their
// own defaults instead of propagating an error.
type JSONRecoverer interface {
	Recover(ctx Context, raw string, expectedFields []string) map[string]any
}

// Transcriber converts candidate audio to text.
type Transcriber interface {
	Transcribe(ctx Context, audio io.Reader, filename string) (string, error)
}

// Synthesizer converts question text to spoken audio.
type Synthesizer interface {
	Synthesize(ctx Context, text string) ([]byte, error)
}

// TextExtractor extracts plain text from an uploaded document file.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// SessionStore holds live session state between HTTP requests and
// serializes access to it with a per-session lock.
type SessionStore interface {
	Save(ctx Context, s *Session) error
	Load(ctx Context, id string) (*Session, error)
	Delete(ctx Context, id string) error
	Lock(ctx Context, id string) (unlock func(), err error)
}

// SessionRepository persists durable session rows.
type SessionRepository interface {
	Create(ctx Context, rec SessionRecord) error
	Get(ctx Context, id string) (SessionRecord, error)
	UpdateStatus(ctx Context, id string, status SessionStatus) error
}

// AnswerRepository persists answered questions keyed by session and
// sequence number.
type AnswerRepository interface {
	Append(ctx Context, a AnsweredQuestion) (string, error)
	ListBySession(ctx Context, sessionID string) ([]AnsweredQuestion, error)
}

// AssessmentRepository persists final assessments.
type AssessmentRepository interface {
	Upsert(ctx Context, a Assessment) error
	Get(ctx Context, sessionID string) (Assessment, error)
}

// Queue enqueues background assessment work.
type Queue interface {
	EnqueueAssessment(ctx Context, t AssessmentTask) error
}
