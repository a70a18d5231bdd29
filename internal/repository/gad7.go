package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/model"
)

type GAD7Repository interface {
	FindByID(ctx context.Context, id int64) (*model.GAD7Result, error)
	FindByUserID(ctx context.Context, userID int64) (*model.GAD7Result, error)
	Create(ctx context.Context, params model.CreateGAD7Params) (*model.GAD7Result, error)
	// FindWithoutSessions returns results created before the cutoff whose
	// plan was never materialized into therapy sessions.
	FindWithoutSessions(ctx context.Context, createdBefore time.Time, limit int) ([]model.GAD7Result, error)
	WithTx(tx *sqlx.Tx) GAD7Repository
}

type gad7Repo struct {
	db database.DBTX
}

func NewGAD7Repository(db *sqlx.DB) GAD7Repository {
	return &gad7Repo{db: db}
}

func (r *gad7Repo) WithTx(tx *sqlx.Tx) GAD7Repository {
	return &gad7Repo{db: tx}
}

func (r *gad7Repo) FindByID(ctx context.Context, id int64) (*model.GAD7Result, error) {
	var result model.GAD7Result
	err := r.db.GetContext(ctx, &result, `
		SELECT * FROM gad7_results WHERE id = $1
	`, id)
	return HandleNotFound(&result, err)
}

func (r *gad7Repo) FindByUserID(ctx context.Context, userID int64) (*model.GAD7Result, error) {
	var result model.GAD7Result
	err := r.db.GetContext(ctx, &result, `
		SELECT * FROM gad7_results WHERE user_id = $1
	`, userID)
	return HandleNotFound(&result, err)
}

func (r *gad7Repo) Create(ctx context.Context, params model.CreateGAD7Params) (*model.GAD7Result, error) {
	a := params.Answers
	rec := params.Recommendation

	var result model.GAD7Result
	err := r.db.GetContext(ctx, &result, `
		INSERT INTO gad7_results (
			user_id, question1, question2, question3, question4, question5, question6, question7,
			reflection, total_score, severity_level,
			therapy_types, session_count, explanation, session_plan
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING *
	`, params.UserID, a[0], a[1], a[2], a[3], a[4], a[5], a[6],
		params.Reflection, params.TotalScore, params.SeverityLevel,
		rec.TherapyTypes, rec.SessionCount, rec.Explanation, rec.SessionPlan)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *gad7Repo) FindWithoutSessions(ctx context.Context, createdBefore time.Time, limit int) ([]model.GAD7Result, error) {
	var results []model.GAD7Result
	err := r.db.SelectContext(ctx, &results, `
		SELECT g.* FROM gad7_results g
		WHERE g.created_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM therapy_sessions s WHERE s.gad7_result_id = g.id
		)
		ORDER BY g.created_at
		LIMIT $2
	`, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	return results, nil
}
