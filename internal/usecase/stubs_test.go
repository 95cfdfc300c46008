package usecase_test

import (
	"fmt"
	"io"
	"sync"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

// stubAI replays canned completions and captures prompts.
type stubAI struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	systems []string
	users   []string
}

func (s *stubAI) ChatJSON(_ domain.Context, systemPrompt, userPrompt string, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.systems = append(s.systems, systemPrompt)
	s.users = append(s.users, userPrompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", fmt.Errorf("stub: no reply configured")
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

// memStore is an in-memory SessionStore with no real locking; usecase
// tests are single-goroutine.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	lockErr  error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*domain.Session{}}
}

func (m *memStore) Save(_ domain.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) Load(_ domain.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Delete(_ domain.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStore) Lock(_ domain.Context, _ string) (func(), error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	return func() {}, nil
}

type memSessions struct {
	mu   sync.Mutex
	recs map[string]domain.SessionRecord
}

func newMemSessions() *memSessions {
	return &memSessions{recs: map[string]domain.SessionRecord{}}
}

func (m *memSessions) Create(_ domain.Context, rec domain.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.ID]; ok {
		return fmt.Errorf("%w: session %s", domain.ErrConflict, rec.ID)
	}
	m.recs[rec.ID] = rec
	return nil
}

func (m *memSessions) Get(_ domain.Context, id string) (domain.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return domain.SessionRecord{}, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return rec, nil
}

func (m *memSessions) UpdateStatus(_ domain.Context, id string, status domain.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	rec.Status = status
	m.recs[id] = rec
	return nil
}

type memAnswers struct {
	mu  sync.Mutex
	all []domain.AnsweredQuestion
}

func (m *memAnswers) Append(_ domain.Context, a domain.AnsweredQuestion) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = fmt.Sprintf("ans-%d", len(m.all)+1)
	m.all = append(m.all, a)
	return a.ID, nil
}

func (m *memAnswers) ListBySession(_ domain.Context, sessionID string) ([]domain.AnsweredQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AnsweredQuestion
	for _, a := range m.all {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memAssessments struct {
	mu   sync.Mutex
	byID map[string]domain.Assessment
}

func newMemAssessments() *memAssessments {
	return &memAssessments{byID: map[string]domain.Assessment{}}
}

func (m *memAssessments) Upsert(_ domain.Context, a domain.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.SessionID] = a
	return nil
}

func (m *memAssessments) Get(_ domain.Context, sessionID string) (domain.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[sessionID]
	if !ok {
		return domain.Assessment{}, fmt.Errorf("%w: assessment %s", domain.ErrNotFound, sessionID)
	}
	return a, nil
}

type memQueue struct {
	mu    sync.Mutex
	tasks []domain.AssessmentTask
	err   error
}

func (m *memQueue) EnqueueAssessment(_ domain.Context, t domain.AssessmentTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, t)
	return nil
}

type stubGen struct {
	q      domain.Question
	source string
	calls  int
}

func (g *stubGen) Generate(_ domain.Context, _ *domain.Session, phase domain.Phase) (domain.Question, string) {
	g.calls++
	q := g.q
	if q.Text == "" {
		q = domain.Question{
			Text:               fmt.Sprintf("%s question %d", phase, g.calls),
			ExpectedAnswerHint: "a good answer",
		}
	}
	src := g.source
	if src == "" {
		src = "generated"
	}
	return q, src
}

type stubEval struct {
	score    int
	feedback string
}

func (e *stubEval) Evaluate(_ domain.Context, _ domain.Question, _ string) (int, string) {
	return e.score, e.feedback
}

type stubProfiles struct{}

func (stubProfiles) Extract(_ domain.Context, _, _ string) (domain.ResumeProfile, domain.JobProfile, domain.MatchProfile) {
	return domain.ResumeProfile{Skills: []string{"go"}, Experience: "5 years"},
		domain.JobProfile{RequiredSkills: []string{"go", "sql"}, Domain: "backend"},
		domain.MatchProfile{MatchingSkills: []string{"go"}, MatchPercent: 72}
}

type stubTranscriber struct {
	text string
	err  error
}

func (t *stubTranscriber) Transcribe(_ domain.Context, _ io.Reader, _ string) (string, error) {
	return t.text, t.err
}

type stubSynthesizer struct {
	audio []byte
	err   error
}

func (s *stubSynthesizer) Synthesize(_ domain.Context, _ string) ([]byte, error) {
	return s.audio, s.err
}
