package service

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/util"
)

func TestUserService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("returns page and total", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindAll", ctx, 20, 40).Return([]model.User{{ID: 41}, {ID: 42}}, nil)
		users.On("Count", ctx).Return(42, nil)

		list, err := NewUserService(users).List(ctx, 20, 40)

		require.NoError(t, err)
		assert.Len(t, list.Users, 2)
		assert.Equal(t, 42, list.Total)
	})

	t.Run("empty page is not nil", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindAll", ctx, 20, 0).Return(nil, nil)
		users.On("Count", ctx).Return(0, nil)

		list, err := NewUserService(users).List(ctx, 20, 0)

		require.NoError(t, err)
		assert.NotNil(t, list.Users)
		assert.Empty(t, list.Users)
	})
}

func TestUserService_Get(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserRepo)
	users.On("FindByID", ctx, int64(1)).Return(&model.User{ID: 1}, nil)
	users.On("FindByID", ctx, int64(2)).Return(nil, nil)
	svc := NewUserService(users)

	user, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	_, err = svc.Get(ctx, 2)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("admin flag is carried", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindByEmail", ctx, "grace@example.com").Return(nil, nil)
		users.On("Create", ctx, mock.MatchedBy(func(p model.CreateUserParams) bool {
			return p.IsAdmin && p.Email == "grace@example.com"
		})).Return(&model.User{ID: 2, IsAdmin: true}, nil)

		user, err := NewUserService(users).Create(ctx, CreateUserInput{
			FirstName: "Grace",
			LastName:  "Hopper",
			Email:     "grace@example.com",
			Password:  testPassword,
			IsAdmin:   true,
		})

		require.NoError(t, err)
		assert.True(t, user.IsAdmin)
	})

	t.Run("unique violation maps to already exists", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("FindByEmail", ctx, "grace@example.com").Return(nil, nil)
		users.On("Create", ctx, mock.Anything).Return(nil, &pq.Error{Code: "23505"})

		_, err := NewUserService(users).Create(ctx, CreateUserInput{
			FirstName: "Grace",
			LastName:  "Hopper",
			Email:     "grace@example.com",
			Password:  testPassword,
		})

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeAlreadyExists))
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := NewUserService(new(mockUserRepo)).Create(ctx, CreateUserInput{Email: "grace@example.com"})

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidation))
	})
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("applies only provided fields", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("Update", ctx, int64(3), mock.MatchedBy(func(p model.UpdateUserParams) bool {
			return p.FirstName != nil && *p.FirstName == "Ada" &&
				p.LastName == nil && p.Email == nil && p.IsAdmin == nil &&
				p.PasswordHash != nil && util.CheckPasswordHash(testPassword, *p.PasswordHash)
		})).Return(&model.User{ID: 3, FirstName: "Ada"}, nil)

		user, err := NewUserService(users).Update(ctx, 3, UpdateUserInput{FirstName: " Ada ", Password: testPassword})

		require.NoError(t, err)
		assert.Equal(t, "Ada", user.FirstName)
		users.AssertExpectations(t)
	})

	t.Run("nothing to update", func(t *testing.T) {
		_, err := NewUserService(new(mockUserRepo)).Update(ctx, 3, UpdateUserInput{})

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidation))
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := NewUserService(new(mockUserRepo)).Update(ctx, 3, UpdateUserInput{Email: "nope"})

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, map[string]string{"field": "email"}, appErr.Details)
	})

	t.Run("missing user", func(t *testing.T) {
		users := new(mockUserRepo)
		isAdmin := false
		users.On("Update", ctx, int64(3), mock.Anything).Return(nil, nil)

		_, err := NewUserService(users).Update(ctx, 3, UpdateUserInput{IsAdmin: &isAdmin})

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	})

	t.Run("email taken", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("Update", ctx, int64(3), mock.Anything).Return(nil, &pq.Error{Code: "23505"})

		_, err := NewUserService(users).Update(ctx, 3, UpdateUserInput{Email: "taken@example.com"})

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeAlreadyExists))
	})
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserRepo)
	users.On("Delete", ctx, int64(1)).Return(true, nil)
	users.On("Delete", ctx, int64(2)).Return(false, nil)
	users.On("Delete", ctx, int64(3)).Return(false, errors.New("boom"))
	svc := NewUserService(users)

	assert.NoError(t, svc.Delete(ctx, 1))
	assert.True(t, apperrors.Is(svc.Delete(ctx, 2), apperrors.ErrCodeNotFound))
	assert.True(t, apperrors.Is(svc.Delete(ctx, 3), apperrors.ErrCodeDatabase))
}
