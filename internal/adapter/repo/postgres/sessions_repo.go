package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

// SessionRepo persists durable interview session rows.
type SessionRepo struct{ Pool PgxPool }

// NewSessionRepo constructs a SessionRepo with the given pool.
func NewSessionRepo(p PgxPool) *SessionRepo { return &SessionRepo{Pool: p} }

// Create stores a new session row.
func (r *SessionRepo) Create(ctx domain.Context, rec domain.SessionRecord) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "sessions"),
	)
	q := `INSERT INTO sessions (id, candidate_name, company_name, status, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.Pool.Exec(ctx, q, rec.ID, rec.CandidateName, rec.CompanyName, rec.Status, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("op=session.create: %w", err)
	}
	return nil
}

// Get loads a session row by id.
func (r *SessionRepo) Get(ctx domain.Context, id string) (domain.SessionRecord, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "sessions"),
	)
	q := `SELECT id, candidate_name, company_name, status, created_at, updated_at FROM sessions WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var rec domain.SessionRecord
	if err := row.Scan(&rec.ID, &rec.CandidateName, &rec.CompanyName, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SessionRecord{}, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
		}
		return domain.SessionRecord{}, fmt.Errorf("op=session.get: %w", err)
	}
	return rec, nil
}

// UpdateStatus moves a session through its lifecycle.
func (r *SessionRepo) UpdateStatus(ctx domain.Context, id string, status domain.SessionStatus) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "sessions"),
	)
	q := `UPDATE sessions SET status=$2, updated_at=$3 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=session.update_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return nil
}
