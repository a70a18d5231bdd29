package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/model"
)

type TherapyMessageRepository interface {
	Create(ctx context.Context, params model.CreateMessageParams) (*model.TherapyMessage, error)
	FindBySessionID(ctx context.Context, sessionID int64) ([]model.TherapyMessage, error)
	CountBySessionID(ctx context.Context, sessionID int64) (int, error)
	WithTx(tx *sqlx.Tx) TherapyMessageRepository
}

type therapyMessageRepo struct {
	db database.DBTX
}

func NewTherapyMessageRepository(db *sqlx.DB) TherapyMessageRepository {
	return &therapyMessageRepo{db: db}
}

func (r *therapyMessageRepo) WithTx(tx *sqlx.Tx) TherapyMessageRepository {
	return &therapyMessageRepo{db: tx}
}

func (r *therapyMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.TherapyMessage, error) {
	var msg model.TherapyMessage
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO therapy_messages (session_id, sender, message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.SessionID, params.Sender, params.Message, params.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindBySessionID returns the transcript oldest first; id breaks timestamp ties.
func (r *therapyMessageRepo) FindBySessionID(ctx context.Context, sessionID int64) ([]model.TherapyMessage, error) {
	messages := []model.TherapyMessage{}
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM therapy_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *therapyMessageRepo) CountBySessionID(ctx context.Context, sessionID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM therapy_messages WHERE session_id = $1
	`, sessionID)
	return count, err
}
