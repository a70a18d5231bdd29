package model

import (
	"time"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	RegisterDate time.Time `db:"register_date" json:"register_date"`
}

type CreateUserParams struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

// UpdateUserParams carries a partial update; nil fields are left untouched.
type UpdateUserParams struct {
	FirstName    *string
	LastName     *string
	Email        *string
	PasswordHash *string
	IsAdmin      *bool
}

func (p UpdateUserParams) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.PasswordHash == nil && p.IsAdmin == nil
}

// Principal is the authenticated caller, resolved once per request.
type Principal struct {
	UserID  int64
	IsAdmin bool
}

type RefreshToken struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateRefreshTokenParams struct {
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
}
