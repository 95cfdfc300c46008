package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

// AnswerRepo persists answered questions.
type AnswerRepo struct{ Pool PgxPool }

// NewAnswerRepo constructs an AnswerRepo with the given pool.
func NewAnswerRepo(p PgxPool) *AnswerRepo { return &AnswerRepo{Pool: p} }

// Append stores one answered question and returns its id (generating one
// when empty).
func (r *AnswerRepo) Append(ctx domain.Context, a domain.AnsweredQuestion) (string, error) {
	tracer := otel.Tracer("repo.answers")
	ctx, span := tracer.Start(ctx, "answers.Append")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "answers"),
	)
	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO answers (id, session_id, seq, phase, question_text, expected_answer_hint, answer_text, score, feedback, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.Pool.Exec(ctx, q, id, a.SessionID, a.Seq, a.Phase, a.QuestionText, a.ExpectedAnswerHint, a.AnswerText, a.Score, a.Feedback, a.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("op=answer.append: %w", err)
	}
	return id, nil
}

// ListBySession returns a session's answers ordered by sequence number.
func (r *AnswerRepo) ListBySession(ctx domain.Context, sessionID string) ([]domain.AnsweredQuestion, error) {
	tracer := otel.Tracer("repo.answers")
	ctx, span := tracer.Start(ctx, "answers.ListBySession")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "answers"),
	)
	q := `SELECT id, session_id, seq, phase, question_text, expected_answer_hint, answer_text, score, feedback, created_at
	      FROM answers WHERE session_id=$1 ORDER BY seq`
	rows, err := r.Pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("op=answer.list: %w", err)
	}
	defer rows.Close()

	var out []domain.AnsweredQuestion
	for rows.Next() {
		var a domain.AnsweredQuestion
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Seq, &a.Phase, &a.QuestionText, &a.ExpectedAnswerHint, &a.AnswerText, &a.Score, &a.Feedback, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=answer.list: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=answer.list: %w", err)
	}
	return out, nil
}
