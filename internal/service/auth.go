package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/auth"
	"github.com/aithera/therapy-server-go/internal/database"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/util"
)

type SignupInput struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginResult struct {
	UserID           int64
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type AuthService struct {
	userRepo    repository.UserRepository
	refreshRepo repository.RefreshTokenRepository
	tokens      *auth.TokenIssuer
	now         func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	refreshRepo repository.RefreshTokenRepository,
	tokens *auth.TokenIssuer,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		tokens:      tokens,
		now:         time.Now,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, apperrors.ValidationError("All fields are required")
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperrors.FieldError("confirm_password", "Passwords do not match")
	}

	params, err := newUserParams(in.FirstName, in.LastName, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	user, err := createUser(ctx, s.userRepo, params)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("userId", user.ID).Msg("user signed up")
	return user, nil
}

// newUserParams validates and normalizes the fields shared by signup and
// admin user creation.
func newUserParams(firstName, lastName, email, password string) (model.CreateUserParams, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !util.IsValidEmail(email) {
		return model.CreateUserParams{}, apperrors.FieldError("email", "Invalid email format")
	}
	if !util.IsStrongPassword(password) {
		return model.CreateUserParams{}, apperrors.FieldError("password",
			"Password must be at least 8 characters and contain upper-case, lower-case, digit and special characters")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return model.CreateUserParams{}, apperrors.Internal("Failed to hash password").WithCause(err)
	}

	return model.CreateUserParams{
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Email:        email,
		PasswordHash: hash,
	}, nil
}

func createUser(ctx context.Context, userRepo repository.UserRepository, params model.CreateUserParams) (*model.User, error) {
	existing, err := userRepo.FindByEmail(ctx, params.Email)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("User with this email")
	}

	user, err := userRepo.Create(ctx, params)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("User with this email")
		}
		return nil, apperrors.Database(err)
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, apperrors.ValidationError("Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		util.BurnPasswordCheck(password)
		return nil, apperrors.InvalidCredentials()
	}
	if !util.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	accessToken, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}
	refreshToken, expiresAt, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}

	if _, err := s.refreshRepo.Create(ctx, model.CreateRefreshTokenParams{
		UserID:    user.ID,
		TokenHash: util.HashToken(refreshToken),
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, apperrors.Database(err)
	}

	return &LoginResult{
		UserID:           user.ID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// Refresh exchanges a stored, unexpired refresh token for a new access token.
// The refresh token itself stays valid until it expires or the user logs out.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperrors.MissingRequired("Refresh token")
	}

	stored, err := s.refreshRepo.FindByTokenHash(ctx, util.HashToken(refreshToken))
	if err != nil {
		return "", apperrors.Database(err)
	}
	if stored == nil {
		return "", apperrors.InvalidToken("Invalid refresh token")
	}
	if !stored.ExpiresAt.After(s.now()) {
		return "", apperrors.TokenExpired("Refresh token expired")
	}

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", tokenError(err, "Invalid refresh token")
	}
	if claims.UserID != stored.UserID {
		return "", apperrors.InvalidToken("Invalid refresh token")
	}

	accessToken, err := s.tokens.IssueAccess(claims.UserID)
	if err != nil {
		return "", apperrors.Internal("Failed to issue token").WithCause(err)
	}
	return accessToken, nil
}

// IsAuthenticated reports whether refreshToken would currently be accepted by
// Refresh. It never fails.
func (s *AuthService) IsAuthenticated(ctx context.Context, refreshToken string) bool {
	if refreshToken == "" {
		return false
	}
	if _, err := s.tokens.ParseRefresh(refreshToken); err != nil {
		return false
	}
	stored, err := s.refreshRepo.FindByTokenHash(ctx, util.HashToken(refreshToken))
	if err != nil {
		log.Warn().Err(err).Msg("session check: database error")
		return false
	}
	return stored != nil && stored.ExpiresAt.After(s.now())
}

// Logout revokes every refresh token of the token's owner and returns the
// owner's id.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (int64, error) {
	if refreshToken == "" {
		return 0, apperrors.MissingRequired("Refresh token")
	}

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return 0, tokenError(err, "Invalid refresh token")
	}

	count, err := s.refreshRepo.DeleteByUserID(ctx, claims.UserID)
	if err != nil {
		return 0, apperrors.Database(err)
	}

	log.Info().Int64("userId", claims.UserID).Int64("revoked", count).Msg("user logged out")
	return claims.UserID, nil
}

// Authenticate resolves a bearer access token to the calling principal.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.Principal, error) {
	if accessToken == "" {
		return nil, apperrors.MissingToken("Access token required")
	}

	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, tokenError(err, "Invalid access token")
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}

	return &model.Principal{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func tokenError(err error, invalidMessage string) *apperrors.AppError {
	if errors.Is(err, auth.ErrTokenExpired) {
		return apperrors.TokenExpired("Token expired")
	}
	return apperrors.InvalidToken(invalidMessage)
}
