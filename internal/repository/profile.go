package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/model"
)

type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID int64) (*model.Profile, error)
	Create(ctx context.Context, params model.CreateProfileParams) (*model.Profile, error)
	Update(ctx context.Context, userID int64, params model.UpdateProfileParams) (*model.Profile, error)
	WithTx(tx *sqlx.Tx) ProfileRepository
}

type profileRepo struct {
	db database.DBTX
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) WithTx(tx *sqlx.Tx) ProfileRepository {
	return &profileRepo{db: tx}
}

func (r *profileRepo) FindByUserID(ctx context.Context, userID int64) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM user_profiles WHERE user_id = $1
	`, userID)
	return HandleNotFound(&profile, err)
}

func (r *profileRepo) Create(ctx context.Context, params model.CreateProfileParams) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		INSERT INTO user_profiles (
			user_id, age, gender, sleep_pattern, stress_level,
			has_diagnosis, uses_medication, dream_recall_level
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.UserID, params.Age, params.Gender, params.SleepPattern, params.StressLevel,
		params.HasDiagnosis, params.UsesMedication, params.DreamRecallLevel)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) Update(ctx context.Context, userID int64, params model.UpdateProfileParams) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		UPDATE user_profiles SET
			age = COALESCE($2, age),
			gender = COALESCE($3, gender),
			sleep_pattern = COALESCE($4, sleep_pattern),
			stress_level = COALESCE($5, stress_level),
			has_diagnosis = COALESCE($6, has_diagnosis),
			uses_medication = COALESCE($7, uses_medication),
			dream_recall_level = COALESCE($8, dream_recall_level),
			updated_at = $9
		WHERE user_id = $1
		RETURNING *
	`, userID, params.Age, params.Gender, params.SleepPattern, params.StressLevel,
		params.HasDiagnosis, params.UsesMedication, params.DreamRecallLevel, time.Now())
	return HandleNotFound(&profile, err)
}
