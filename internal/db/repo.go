package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"earcheck/pkg"
)

var (
	// ErrNotFound is returned for unknown sessions and missing summaries.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an answer lands on a position that is
	// already taken.
	ErrConflict = errors.New("conflicting update")
)

// Postgres error codes handled explicitly.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Repository stores sessions, answer logs and summaries in Postgres.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// CreateSession inserts an empty session.
func (r *Repository) CreateSession(ctx context.Context, audience pkg.Audience) (pkg.Session, error) {
	s := pkg.Session{ID: uuid.NewString(), Audience: audience, Events: []pkg.AnswerEvent{}}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO sessions (id, audience)
         VALUES ($1, $2)
         RETURNING created_at, updated_at`,
		s.ID, string(audience),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return pkg.Session{}, err
	}
	return s, nil
}

// GetSession loads a session with its answer log in order.
func (r *Repository) GetSession(ctx context.Context, id string) (pkg.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return pkg.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	s := pkg.Session{ID: id}
	var audience string
	err := r.DB.QueryRowContext(ctx,
		`SELECT audience, created_at, updated_at
         FROM sessions
         WHERE id = $1`, id,
	).Scan(&audience, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pkg.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return pkg.Session{}, err
	}
	s.Audience = pkg.Audience(audience)

	rows, err := r.DB.QueryContext(ctx,
		`SELECT symptom_id, question_id, kind, value
         FROM answer_events
         WHERE session_id = $1
         ORDER BY seq ASC`, id)
	if err != nil {
		return pkg.Session{}, err
	}
	defer rows.Close()
	s.Events = []pkg.AnswerEvent{}
	for rows.Next() {
		var ev pkg.AnswerEvent
		var kind string
		if err := rows.Scan(&ev.SymptomID, &ev.QuestionID, &kind, &ev.Value); err != nil {
			return pkg.Session{}, err
		}
		ev.Kind = pkg.QuestionKind(kind)
		s.Events = append(s.Events, ev)
	}
	return s, rows.Err()
}

// AppendEvent stores ev at position seq.  The insert only happens while the
// log holds exactly seq events; otherwise another answer won the race and
// ErrConflict is returned.
func (r *Repository) AppendEvent(ctx context.Context, sessionID string, seq int, ev pkg.AnswerEvent) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO answer_events (session_id, seq, symptom_id, question_id, kind, value)
         SELECT $1::uuid, $2::int, $3, $4, $5, $6
         WHERE (SELECT COUNT(*)::int FROM answer_events WHERE session_id = $1::uuid) = $2::int`,
		sessionID, seq, ev.SymptomID, ev.QuestionID, string(ev.Kind), ev.Value,
	)
	if err != nil {
		return mapPQError(sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %q event %d: %w", sessionID, seq, ErrConflict)
	}
	if err := touch(ctx, tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// TruncateEvents keeps the first keep events of the log.
func (r *Repository) TruncateEvents(ctx context.Context, sessionID string, keep int) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM answer_events WHERE session_id = $1 AND seq >= $2`,
		sessionID, keep,
	); err != nil {
		return err
	}
	if err := touch(ctx, tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func touch(ctx context.Context, tx *sql.Tx, sessionID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = NOW() WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	return nil
}

// SaveSummary stores an accepted summary and fills in its ID and time.
func (r *Repository) SaveSummary(ctx context.Context, rec pkg.SummaryRecord) (pkg.SummaryRecord, error) {
	rec.ID = uuid.NewString()
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO summaries (id, session_id, audience, markdown, attempts)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING created_at`,
		rec.ID, rec.SessionID, string(rec.Audience), rec.Markdown, rec.Attempts,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return pkg.SummaryRecord{}, mapPQError(rec.SessionID, err)
	}
	return rec, nil
}

// LatestSummary returns the newest summary of a session.
func (r *Repository) LatestSummary(ctx context.Context, sessionID string) (pkg.SummaryRecord, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return pkg.SummaryRecord{}, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	var rec pkg.SummaryRecord
	var audience string
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, session_id, audience, markdown, attempts, created_at
         FROM summaries
         WHERE session_id = $1
         ORDER BY created_at DESC
         LIMIT 1`, sessionID,
	).Scan(&rec.ID, &rec.SessionID, &audience, &rec.Markdown, &rec.Attempts, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pkg.SummaryRecord{}, fmt.Errorf("summary for session %q: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return pkg.SummaryRecord{}, err
	}
	rec.Audience = pkg.Audience(audience)
	return rec, nil
}

func mapPQError(sessionID string, err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return fmt.Errorf("session %q: %w", sessionID, ErrConflict)
	case pqForeignKeyViolation:
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	return err
}
