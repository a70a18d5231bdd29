package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	Update(ctx context.Context, id int64, params model.UpdateUserParams) (*model.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE LOWER(email) = LOWER($1)
	`, email)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindAll(ctx context.Context, limit, offset int) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (first_name, last_name, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.FirstName, params.LastName, params.Email, params.PasswordHash, params.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Update(ctx context.Context, id int64, params model.UpdateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			email = COALESCE($4, email),
			password_hash = COALESCE($5, password_hash),
			is_admin = COALESCE($6, is_admin)
		WHERE id = $1
		RETURNING *
	`, id, params.FirstName, params.LastName, params.Email, params.PasswordHash, params.IsAdmin)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Delete(ctx context.Context, id int64) (bool, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}
