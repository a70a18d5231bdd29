package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/database"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/util"
)

type CreateUserInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	IsAdmin   bool   `json:"is_admin"`
}

// UpdateUserInput changes only the non-empty fields.
type UpdateUserInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	IsAdmin   *bool  `json:"is_admin"`
}

type UserList struct {
	Users []model.User `json:"users"`
	Total int          `json:"total"`
}

// UserService backs the admin user-management endpoints.
type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) List(ctx context.Context, limit, offset int) (*UserList, error) {
	users, err := s.userRepo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if users == nil {
		users = []model.User{}
	}
	return &UserList{Users: users, Total: total}, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return nil, apperrors.ValidationError("All fields are required")
	}

	params, err := newUserParams(in.FirstName, in.LastName, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	params.IsAdmin = in.IsAdmin

	user, err := createUser(ctx, s.userRepo, params)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("userId", user.ID).Bool("isAdmin", user.IsAdmin).Msg("user created by admin")
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id int64, in UpdateUserInput) (*model.User, error) {
	var params model.UpdateUserParams

	if v := strings.TrimSpace(in.FirstName); v != "" {
		params.FirstName = &v
	}
	if v := strings.TrimSpace(in.LastName); v != "" {
		params.LastName = &v
	}
	if in.Email != "" {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if !util.IsValidEmail(email) {
			return nil, apperrors.FieldError("email", "Invalid email format")
		}
		params.Email = &email
	}
	if in.Password != "" {
		if !util.IsStrongPassword(in.Password) {
			return nil, apperrors.FieldError("password",
				"Password must be at least 8 characters and contain upper-case, lower-case, digit and special characters")
		}
		hash, err := util.HashPassword(in.Password)
		if err != nil {
			return nil, apperrors.Internal("Failed to hash password").WithCause(err)
		}
		params.PasswordHash = &hash
	}
	params.IsAdmin = in.IsAdmin

	if params.IsEmpty() {
		return nil, apperrors.ValidationError("No fields to update")
	}

	user, err := s.userRepo.Update(ctx, id, params)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("User with this email")
		}
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("User")
	}

	log.Info().Int64("userId", id).Msg("user deleted")
	return nil
}
