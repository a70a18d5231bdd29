package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/model"
)

func strPtr(s string) *string { return &s }

func flexPtr(n int) *model.FlexInt {
	v := model.FlexInt(n)
	return &v
}

func completeProfileInput() ProfileInput {
	return ProfileInput{
		Age:              flexPtr(34),
		Gender:           strPtr("female"),
		SleepPattern:     strPtr("insomnia"),
		StressLevel:      flexPtr(7),
		HasDiagnosis:     strPtr("no"),
		UsesMedication:   strPtr("no"),
		DreamRecallLevel: strPtr("don't_remember"),
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok, "expected field details on %v", err)
	return details["field"]
}

func TestProfileService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates profile", func(t *testing.T) {
		repo := new(mockProfileRepo)
		repo.On("FindByUserID", ctx, int64(1)).Return(nil, nil)
		repo.On("Create", ctx, model.CreateProfileParams{
			UserID:           1,
			Age:              34,
			Gender:           "female",
			SleepPattern:     "insomnia",
			StressLevel:      7,
			HasDiagnosis:     "no",
			UsesMedication:   "no",
			DreamRecallLevel: "don't_remember",
		}).Return(&model.Profile{ID: 10, UserID: 1}, nil)

		profile, err := NewProfileService(repo).Create(ctx, 1, completeProfileInput())

		require.NoError(t, err)
		assert.Equal(t, int64(10), profile.ID)
		repo.AssertExpectations(t)
	})

	t.Run("second profile is rejected", func(t *testing.T) {
		repo := new(mockProfileRepo)
		repo.On("FindByUserID", ctx, int64(1)).Return(&model.Profile{ID: 10}, nil)

		_, err := NewProfileService(repo).Create(ctx, 1, completeProfileInput())

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeAlreadyExists))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	tests := []struct {
		name   string
		mutate func(*ProfileInput)
		field  string
	}{
		{"missing age", func(in *ProfileInput) { in.Age = nil }, "age"},
		{"missing stress", func(in *ProfileInput) { in.StressLevel = nil }, "stressLevel"},
		{"missing gender", func(in *ProfileInput) { in.Gender = nil }, "gender"},
		{"blank dream recall", func(in *ProfileInput) { in.DreamRecallLevel = strPtr(" ") }, "dreamRecallLevel"},
		{"age zero", func(in *ProfileInput) { in.Age = flexPtr(0) }, "age"},
		{"age too high", func(in *ProfileInput) { in.Age = flexPtr(121) }, "age"},
		{"stress too high", func(in *ProfileInput) { in.StressLevel = flexPtr(11) }, "stressLevel"},
		{"unknown sleep pattern", func(in *ProfileInput) { in.SleepPattern = strPtr("napping") }, "sleepPattern"},
		{"unknown medication answer", func(in *ProfileInput) { in.UsesMedication = strPtr("maybe") }, "usesMedication"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := completeProfileInput()
			tt.mutate(&in)

			_, err := NewProfileService(new(mockProfileRepo)).Create(ctx, 1, in)

			assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidation))
			assert.Equal(t, tt.field, fieldOf(t, err))
		})
	}
}

func TestProfileService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update", func(t *testing.T) {
		repo := new(mockProfileRepo)
		repo.On("Update", ctx, int64(1), mock.MatchedBy(func(p model.UpdateProfileParams) bool {
			return p.StressLevel != nil && *p.StressLevel == 3 && p.Age == nil && p.Gender == nil
		})).Return(&model.Profile{UserID: 1, StressLevel: 3}, nil)

		profile, err := NewProfileService(repo).Update(ctx, 1, ProfileInput{StressLevel: flexPtr(3)})

		require.NoError(t, err)
		assert.Equal(t, 3, profile.StressLevel)
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := NewProfileService(new(mockProfileRepo)).Update(ctx, 1, ProfileInput{})

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidation))
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := NewProfileService(new(mockProfileRepo)).Update(ctx, 1, ProfileInput{Gender: strPtr("robot")})

		assert.Equal(t, "gender", fieldOf(t, err))
	})

	t.Run("no profile yet", func(t *testing.T) {
		repo := new(mockProfileRepo)
		repo.On("Update", ctx, int64(1), mock.Anything).Return(nil, nil)

		_, err := NewProfileService(repo).Update(ctx, 1, ProfileInput{Age: flexPtr(40)})

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	})
}

func TestProfileService_Check(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepo)
	repo.On("FindByUserID", ctx, int64(1)).Return(&model.Profile{ID: 10}, nil)
	repo.On("FindByUserID", ctx, int64(2)).Return(nil, nil)
	svc := NewProfileService(repo)

	status, err := svc.Check(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &ProfileStatus{HasProfile: true, Message: "User profile found"}, status)

	status, err = svc.Check(ctx, 2)
	require.NoError(t, err)
	assert.False(t, status.HasProfile)

	_, err = svc.Get(ctx, 2)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}
