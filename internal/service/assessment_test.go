package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/jobs"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/util"
)

type stubRecommender struct {
	rec   *model.Recommendation
	err   error
	calls []PlanInput
}

func (s *stubRecommender) Recommend(ctx context.Context, in PlanInput) (*model.Recommendation, error) {
	s.calls = append(s.calls, in)
	return s.rec, s.err
}

func testRecommendation() *model.Recommendation {
	return &model.Recommendation{
		TherapyTypes: model.StringList{"CBT"},
		SessionCount: 1,
		Explanation:  "Structured work on worry.",
		SessionPlan: model.SessionPlan{
			{SessionNumber: 1, Topic: "Mapping worry", Goals: model.StringList{"Keep a worry log"}},
		},
	}
}

func gad7Input(answers ...int) GAD7Input {
	in := GAD7Input{Question8: strPtr("Mostly my job and not sleeping enough.")}
	targets := []**model.FlexInt{
		&in.Question1, &in.Question2, &in.Question3, &in.Question4,
		&in.Question5, &in.Question6, &in.Question7,
	}
	for i, a := range answers {
		*targets[i] = flexPtr(a)
	}
	return in
}

type assessmentFixture struct {
	svc      *AssessmentService
	gad7     *mockGAD7Repo
	profiles *mockProfileRepo
	planner  *stubRecommender
	enqueuer *mockEnqueuer
}

func newAssessmentFixture(t *testing.T, cipher *util.FieldCipher) *assessmentFixture {
	t.Helper()
	f := &assessmentFixture{
		gad7:     new(mockGAD7Repo),
		profiles: new(mockProfileRepo),
		planner:  &stubRecommender{rec: testRecommendation()},
		enqueuer: new(mockEnqueuer),
	}
	f.svc = NewAssessmentService(f.gad7, f.profiles, f.planner, f.enqueuer, cipher, 20)
	return f
}

func TestAssessmentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("scores, plans and schedules materialization", func(t *testing.T) {
		f := newAssessmentFixture(t, nil)
		f.gad7.On("FindByUserID", ctx, int64(1)).Return(nil, nil)
		f.profiles.On("FindByUserID", ctx, int64(1)).Return(&model.Profile{UserID: 1, Age: 30}, nil)
		f.gad7.On("Create", ctx, mock.MatchedBy(func(p model.CreateGAD7Params) bool {
			return p.UserID == 1 &&
				p.TotalScore == 11 &&
				p.SeverityLevel == model.SeverityModerate &&
				p.Answers == [7]int{3, 2, 1, 0, 2, 2, 1} &&
				p.Recommendation.SessionCount == 1
		})).Return(&model.GAD7Result{ID: 44, UserID: 1, TotalScore: 11}, nil)
		f.enqueuer.On("Enqueue", ctx, jobs.KindMaterializePlan, jobs.MaterializePlanPayload{GAD7ResultID: 44}).Return(nil)

		result, err := f.svc.Create(ctx, 1, gad7Input(3, 2, 1, 0, 2, 2, 1))

		require.NoError(t, err)
		assert.Equal(t, int64(44), result.ID)
		assert.Equal(t, "Mostly my job and not sleeping enough.", result.Reflection)
		require.Len(t, f.planner.calls, 1)
		assert.Equal(t, 11, f.planner.calls[0].TotalScore)
		f.gad7.AssertExpectations(t)
		f.enqueuer.AssertExpectations(t)
	})

	t.Run("reflection is encrypted at rest", func(t *testing.T) {
		cipher, err := util.NewFieldCipher("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
		require.NoError(t, err)
		f := newAssessmentFixture(t, cipher)
		f.gad7.On("FindByUserID", ctx, int64(1)).Return(nil, nil)
		f.profiles.On("FindByUserID", ctx, int64(1)).Return(&model.Profile{UserID: 1}, nil)
		var stored string
		f.gad7.On("Create", ctx, mock.MatchedBy(func(p model.CreateGAD7Params) bool {
			stored = p.Reflection
			return true
		})).Return(&model.GAD7Result{ID: 45, UserID: 1}, nil)
		f.enqueuer.On("Enqueue", ctx, mock.Anything, mock.Anything).Return(nil)

		result, err := f.svc.Create(ctx, 1, gad7Input(0, 0, 0, 0, 0, 0, 0))

		require.NoError(t, err)
		assert.NotContains(t, stored, "sleeping")
		opened, err := cipher.Open(stored)
		require.NoError(t, err)
		assert.Equal(t, "Mostly my job and not sleeping enough.", opened)
		assert.Equal(t, opened, result.Reflection)
	})

	t.Run("enqueue failure does not fail the request", func(t *testing.T) {
		f := newAssessmentFixture(t, nil)
		f.gad7.On("FindByUserID", ctx, int64(1)).Return(nil, nil)
		f.profiles.On("FindByUserID", ctx, int64(1)).Return(&model.Profile{UserID: 1}, nil)
		f.gad7.On("Create", ctx, mock.Anything).Return(&model.GAD7Result{ID: 46, UserID: 1}, nil)
		f.enqueuer.On("Enqueue", ctx, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		result, err := f.svc.Create(ctx, 1, gad7Input(1, 1, 1, 1, 1, 1, 1))

		require.NoError(t, err)
		assert.Equal(t, int64(46), result.ID)
	})

	t.Run("second assessment is rejected", func(t *testing.T) {
		f := newAssessmentFixture(t, nil)
		f.gad7.On("FindByUserID", ctx, int64(1)).Return(&model.GAD7Result{ID: 1}, nil)

		_, err := f.svc.Create(ctx, 1, gad7Input(1, 1, 1, 1, 1, 1, 1))

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeAlreadyExists))
		assert.Empty(t, f.planner.calls)
	})

	t.Run("profile is required", func(t *testing.T) {
		f := newAssessmentFixture(t, nil)
		f.gad7.On("FindByUserID", ctx, int64(1)).Return(nil, nil)
		f.profiles.On("FindByUserID", ctx, int64(1)).Return(nil, nil)

		_, err := f.svc.Create(ctx, 1, gad7Input(1, 1, 1, 1, 1, 1, 1))

		assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	})

	t.Run("planner failure is returned and nothing is stored", func(t *testing.T) {
		f := newAssessmentFixture(t, nil)
		f.planner.err = apperrors.PlannerParse(errors.New("bad json"))
		f.gad7.On("FindByUserID", ctx, int64(1)).Return(nil, nil)
		f.profiles.On("FindByUserID", ctx, int64(1)).Return(&model.Profile{UserID: 1}, nil)

		_, err := f.svc.Create(ctx, 1, gad7Input(1, 1, 1, 1, 1, 1, 1))

		assert.True(t, apperrors.Is(err, apperrors.ErrCodePlannerParse))
		f.gad7.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	for q := 1; q <= 7; q++ {
		t.Run(fmt.Sprintf("question%d out of range", q), func(t *testing.T) {
			answers := []int{0, 0, 0, 0, 0, 0, 0}
			answers[q-1] = 4
			f := newAssessmentFixture(t, nil)

			_, err := f.svc.Create(ctx, 1, gad7Input(answers...))

			assert.Equal(t, fmt.Sprintf("question%d", q), fieldOf(t, err))
		})
	}

	t.Run("missing answer", func(t *testing.T) {
		f := newAssessmentFixture(t, nil)

		_, err := f.svc.Create(ctx, 1, gad7Input(0, 0, 0))

		assert.Equal(t, "question4", fieldOf(t, err))
	})

	t.Run("short reflection", func(t *testing.T) {
		f := newAssessmentFixture(t, nil)
		in := gad7Input(0, 0, 0, 0, 0, 0, 0)
		in.Question8 = strPtr("   too short    ")

		_, err := f.svc.Create(ctx, 1, in)

		assert.Equal(t, "question8", fieldOf(t, err))
	})
}

func TestAssessmentService_CheckAndResults(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t, nil)
	f.gad7.On("FindByUserID", ctx, int64(1)).Return(&model.GAD7Result{ID: 3, Reflection: "plain"}, nil)
	f.gad7.On("FindByUserID", ctx, int64(2)).Return(nil, nil)

	status, err := f.svc.Check(ctx, 1)
	require.NoError(t, err)
	assert.True(t, status.HasGAD7)

	status, err = f.svc.Check(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "No GAD-7 assessment found for this user.", status.Message)

	result, err := f.svc.Results(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "plain", result.Reflection)

	_, err = f.svc.Results(ctx, 2)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}
