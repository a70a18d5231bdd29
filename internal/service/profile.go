package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/database"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/util"
)

// ProfileInput is the onboarding questionnaire. Create requires every field;
// Update applies only the fields present.
type ProfileInput struct {
	Age              *model.FlexInt `json:"age"`
	Gender           *string        `json:"gender"`
	SleepPattern     *string        `json:"sleepPattern"`
	StressLevel      *model.FlexInt `json:"stressLevel"`
	HasDiagnosis     *string        `json:"hasDiagnosis"`
	UsesMedication   *string        `json:"usesMedication"`
	DreamRecallLevel *string        `json:"dreamRecallLevel"`
}

type ProfileStatus struct {
	HasProfile bool   `json:"hasProfile"`
	Message    string `json:"message"`
}

type ProfileService struct {
	profileRepo repository.ProfileRepository
}

func NewProfileService(profileRepo repository.ProfileRepository) *ProfileService {
	return &ProfileService{profileRepo: profileRepo}
}

func (s *ProfileService) Get(ctx context.Context, userID int64) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("Profile")
	}
	return profile, nil
}

func (s *ProfileService) Check(ctx context.Context, userID int64) (*ProfileStatus, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return &ProfileStatus{HasProfile: false, Message: "User profile not found"}, nil
	}
	return &ProfileStatus{HasProfile: true, Message: "User profile found"}, nil
}

func (s *ProfileService) Create(ctx context.Context, userID int64, in ProfileInput) (*model.Profile, error) {
	params, err := in.createParams(userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("Profile")
	}

	profile, err := s.profileRepo.Create(ctx, params)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("Profile")
		}
		return nil, apperrors.Database(err)
	}

	log.Info().Int64("userId", userID).Msg("profile created")
	return profile, nil
}

func (s *ProfileService) Update(ctx context.Context, userID int64, in ProfileInput) (*model.Profile, error) {
	params, err := in.updateParams()
	if err != nil {
		return nil, err
	}
	if params.IsEmpty() {
		return nil, apperrors.ValidationError("Please provide at least one field to update")
	}

	profile, err := s.profileRepo.Update(ctx, userID, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("Profile")
	}
	return profile, nil
}

type profileField struct {
	name  string
	value *string
	valid []string
}

func (in ProfileInput) enumFields() []profileField {
	return []profileField{
		{"gender", in.Gender, model.Genders},
		{"sleepPattern", in.SleepPattern, model.SleepPatterns},
		{"hasDiagnosis", in.HasDiagnosis, model.YesNo},
		{"usesMedication", in.UsesMedication, model.YesNo},
		{"dreamRecallLevel", in.DreamRecallLevel, model.DreamRecallLevels},
	}
}

func (in ProfileInput) createParams(userID int64) (model.CreateProfileParams, error) {
	if in.Age == nil {
		return model.CreateProfileParams{}, apperrors.FieldError("age", "age is required")
	}
	if in.StressLevel == nil {
		return model.CreateProfileParams{}, apperrors.FieldError("stressLevel", "stressLevel is required")
	}
	for _, f := range in.enumFields() {
		if f.value == nil || strings.TrimSpace(*f.value) == "" {
			return model.CreateProfileParams{}, apperrors.FieldError(f.name, f.name+" is required")
		}
	}

	params, err := in.updateParams()
	if err != nil {
		return model.CreateProfileParams{}, err
	}

	return model.CreateProfileParams{
		UserID:           userID,
		Age:              *params.Age,
		Gender:           *params.Gender,
		SleepPattern:     *params.SleepPattern,
		StressLevel:      *params.StressLevel,
		HasDiagnosis:     *params.HasDiagnosis,
		UsesMedication:   *params.UsesMedication,
		DreamRecallLevel: *params.DreamRecallLevel,
	}, nil
}

// updateParams validates every present field.
func (in ProfileInput) updateParams() (model.UpdateProfileParams, error) {
	var params model.UpdateProfileParams

	if age := in.Age.IntPtr(); age != nil {
		if *age < 1 || *age > 120 {
			return params, apperrors.FieldError("age", "Age must be between 1 and 120")
		}
		params.Age = age
	}
	if stress := in.StressLevel.IntPtr(); stress != nil {
		if *stress < 1 || *stress > 10 {
			return params, apperrors.FieldError("stressLevel", "Stress level must be between 1 and 10")
		}
		params.StressLevel = stress
	}

	targets := []**string{
		&params.Gender, &params.SleepPattern, &params.HasDiagnosis,
		&params.UsesMedication, &params.DreamRecallLevel,
	}
	for i, f := range in.enumFields() {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if !util.IsValidEnum(v, f.valid) {
			return params, apperrors.FieldError(f.name,
				fmt.Sprintf("%s must be one of: %s", f.name, strings.Join(f.valid, ", ")))
		}
		*targets[i] = &v
	}

	return params, nil
}
