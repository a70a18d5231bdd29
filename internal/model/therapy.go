package model

import (
	"time"
)

type TherapySession struct {
	ID            int64         `db:"id" json:"id"`
	UserID        int64         `db:"user_id" json:"-"`
	GAD7ResultID  int64         `db:"gad7_result_id" json:"-"`
	SessionNumber int           `db:"session_number" json:"session_number"`
	Topic         string        `db:"topic" json:"topic"`
	Goals         StringList    `db:"goals" json:"goals"`
	Status        SessionStatus `db:"status" json:"status"`
	Summary       *string       `db:"summary" json:"-"`
	WellnessScore *int          `db:"wellness_score" json:"wellness_score"`
	CreatedAt     time.Time     `db:"created_at" json:"-"`
	UpdatedAt     time.Time     `db:"updated_at" json:"-"`
	CompletedAt   *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}

type TherapyMessage struct {
	ID        int64     `db:"id" json:"-"`
	SessionID int64     `db:"session_id" json:"-"`
	Sender    Sender    `db:"sender" json:"sender"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

type CreateMessageParams struct {
	SessionID int64
	Sender    Sender
	Message   string
	CreatedAt time.Time
}
