package model

import (
	"time"
)

type Profile struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"userId"`
	Age              int       `db:"age" json:"age"`
	Gender           string    `db:"gender" json:"gender"`
	SleepPattern     string    `db:"sleep_pattern" json:"sleepPattern"`
	StressLevel      int       `db:"stress_level" json:"stressLevel"`
	HasDiagnosis     string    `db:"has_diagnosis" json:"hasDiagnosis"`
	UsesMedication   string    `db:"uses_medication" json:"usesMedication"`
	DreamRecallLevel string    `db:"dream_recall_level" json:"dreamRecallLevel"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateProfileParams struct {
	UserID           int64
	Age              int
	Gender           string
	SleepPattern     string
	StressLevel      int
	HasDiagnosis     string
	UsesMedication   string
	DreamRecallLevel string
}

// UpdateProfileParams carries a partial update; nil fields are left untouched.
type UpdateProfileParams struct {
	Age              *int    `json:"age"`
	Gender           *string `json:"gender"`
	SleepPattern     *string `json:"sleepPattern"`
	StressLevel      *int    `json:"stressLevel"`
	HasDiagnosis     *string `json:"hasDiagnosis"`
	UsesMedication   *string `json:"usesMedication"`
	DreamRecallLevel *string `json:"dreamRecallLevel"`
}

func (p UpdateProfileParams) IsEmpty() bool {
	return p.Age == nil && p.Gender == nil && p.SleepPattern == nil && p.StressLevel == nil &&
		p.HasDiagnosis == nil && p.UsesMedication == nil && p.DreamRecallLevel == nil
}
