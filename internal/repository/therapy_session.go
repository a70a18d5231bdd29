package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/model"
)

type TherapySessionRepository interface {
	FindByID(ctx context.Context, id int64) (*model.TherapySession, error)
	FindByUserID(ctx context.Context, userID int64) ([]model.TherapySession, error)
	FindByUserAndNumber(ctx context.Context, userID int64, number int) (*model.TherapySession, error)
	// LockByUserAndNumber is FindByUserAndNumber with a row lock; it must run
	// inside a transaction.
	LockByUserAndNumber(ctx context.Context, userID int64, number int) (*model.TherapySession, error)
	// CreatePlan inserts one row per planned session. The first session is
	// queued; the rest start as not_started. Existing rows are left alone.
	CreatePlan(ctx context.Context, userID, gad7ResultID int64, plan model.SessionPlan) (int64, error)
	// TransitionStatus moves a session from one status to another and
	// reports false when the row was not in the expected status.
	TransitionStatus(ctx context.Context, id int64, from, to model.SessionStatus) (bool, error)
	// PromoteNext queues the session following number if it has not started.
	PromoteNext(ctx context.Context, userID int64, number int) (bool, error)
	UpdateSummary(ctx context.Context, id int64, summary string, wellnessScore int) error
	WithTx(tx *sqlx.Tx) TherapySessionRepository
}

type therapySessionRepo struct {
	db database.DBTX
}

func NewTherapySessionRepository(db *sqlx.DB) TherapySessionRepository {
	return &therapySessionRepo{db: db}
}

func (r *therapySessionRepo) WithTx(tx *sqlx.Tx) TherapySessionRepository {
	return &therapySessionRepo{db: tx}
}

func (r *therapySessionRepo) FindByID(ctx context.Context, id int64) (*model.TherapySession, error) {
	var session model.TherapySession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM therapy_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *therapySessionRepo) FindByUserID(ctx context.Context, userID int64) ([]model.TherapySession, error) {
	sessions := []model.TherapySession{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM therapy_sessions
		WHERE user_id = $1
		ORDER BY session_number
	`, userID)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *therapySessionRepo) FindByUserAndNumber(ctx context.Context, userID int64, number int) (*model.TherapySession, error) {
	var session model.TherapySession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM therapy_sessions
		WHERE user_id = $1 AND session_number = $2
	`, userID, number)
	return HandleNotFound(&session, err)
}

func (r *therapySessionRepo) LockByUserAndNumber(ctx context.Context, userID int64, number int) (*model.TherapySession, error) {
	var session model.TherapySession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM therapy_sessions
		WHERE user_id = $1 AND session_number = $2
		FOR UPDATE
	`, userID, number)
	return HandleNotFound(&session, err)
}

func (r *therapySessionRepo) CreatePlan(ctx context.Context, userID, gad7ResultID int64, plan model.SessionPlan) (int64, error) {
	var inserted int64
	for _, planned := range plan {
		status := model.SessionStatusNotStarted
		if planned.SessionNumber == 1 {
			status = model.SessionStatusInQueue
		}

		result, err := r.db.ExecContext(ctx, `
			INSERT INTO therapy_sessions (user_id, gad7_result_id, session_number, topic, goals, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, session_number) DO NOTHING
		`, userID, gad7ResultID, planned.SessionNumber, planned.Topic, planned.Goals, status)
		if err != nil {
			return inserted, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

func (r *therapySessionRepo) TransitionStatus(ctx context.Context, id int64, from, to model.SessionStatus) (bool, error) {
	now := time.Now()
	var completedAt *time.Time
	if to == model.SessionStatusCompleted {
		completedAt = &now
	}

	return affected(r.db.ExecContext(ctx, `
		UPDATE therapy_sessions SET
			status = $3,
			completed_at = COALESCE($4, completed_at),
			updated_at = $5
		WHERE id = $1 AND status = $2
	`, id, from, to, completedAt, now))
}

func (r *therapySessionRepo) PromoteNext(ctx context.Context, userID int64, number int) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE therapy_sessions SET
			status = $3,
			updated_at = $5
		WHERE user_id = $1 AND session_number = $2 + 1 AND status = $4
	`, userID, number, model.SessionStatusInQueue, model.SessionStatusNotStarted, time.Now()))
}

func (r *therapySessionRepo) UpdateSummary(ctx context.Context, id int64, summary string, wellnessScore int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE therapy_sessions SET
			summary = $2,
			wellness_score = $3,
			updated_at = $4
		WHERE id = $1
	`, id, summary, wellnessScore, time.Now())
	return err
}
