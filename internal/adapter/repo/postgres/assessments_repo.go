package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

// AssessmentRepo persists final assessments, one per session.
type AssessmentRepo struct{ Pool PgxPool }

// NewAssessmentRepo constructs an AssessmentRepo with the given pool.
func NewAssessmentRepo(p PgxPool) *AssessmentRepo { return &AssessmentRepo{Pool: p} }

// Upsert stores or replaces a session's assessment. Reprocessing a task
// must be safe, so this is an upsert rather than a bare insert.
func (r *AssessmentRepo) Upsert(ctx domain.Context, a domain.Assessment) error {
	tracer := otel.Tracer("repo.assessments")
	ctx, span := tracer.Start(ctx, "assessments.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "assessments"),
	)
	q := `INSERT INTO assessments (session_id, project_score, technical_score, scenario_score, behavioral_score, overall_score, strengths, weaknesses, improvements, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	      ON CONFLICT (session_id) DO UPDATE SET
	        project_score=EXCLUDED.project_score,
	        technical_score=EXCLUDED.technical_score,
	        scenario_score=EXCLUDED.scenario_score,
	        behavioral_score=EXCLUDED.behavioral_score,
	        overall_score=EXCLUDED.overall_score,
	        strengths=EXCLUDED.strengths,
	        weaknesses=EXCLUDED.weaknesses,
	        improvements=EXCLUDED.improvements,
	        created_at=EXCLUDED.created_at`
	_, err := r.Pool.Exec(ctx, q, a.SessionID, a.ProjectScore, a.TechnicalScore, a.ScenarioScore, a.BehavioralScore, a.OverallScore, a.Strengths, a.Weaknesses, a.Improvements, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("op=assessment.upsert: %w", err)
	}
	return nil
}

// Get loads a session's assessment.
func (r *AssessmentRepo) Get(ctx domain.Context, sessionID string) (domain.Assessment, error) {
	tracer := otel.Tracer("repo.assessments")
	ctx, span := tracer.Start(ctx, "assessments.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "assessments"),
	)
	q := `SELECT session_id, project_score, technical_score, scenario_score, behavioral_score, overall_score, strengths, weaknesses, improvements, created_at
	      FROM assessments WHERE session_id=$1`
	row := r.Pool.QueryRow(ctx, q, sessionID)
	var a domain.Assessment
	if err := row.Scan(&a.SessionID, &a.ProjectScore, &a.TechnicalScore, &a.ScenarioScore, &a.BehavioralScore, &a.OverallScore, &a.Strengths, &a.Weaknesses, &a.Improvements, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Assessment{}, fmt.Errorf("%w: assessment %s", domain.ErrNotFound, sessionID)
		}
		return domain.Assessment{}, fmt.Errorf("op=assessment.get: %w", err)
	}
	return a, nil
}

// schema documents the expected tables; migrations live in deploy.
//
//	sessions(id text pk, candidate_name text, company_name text, status text, created_at timestamptz, updated_at timestamptz)
//	answers(id uuid pk, session_id text, seq int, phase text, question_text text, expected_answer_hint text, answer_text text, score int, feedback text, created_at timestamptz, unique(session_id, seq))
//	assessments(session_id text pk, project_score int null, technical_score int null, scenario_score int null, behavioral_score int null, overall_score int, strengths text[], weaknesses text[], improvements text[], created_at timestamptz)
