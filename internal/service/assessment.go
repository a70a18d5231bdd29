package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/database"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/jobs"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/util"
)

type GAD7Input struct {
	Question1 *model.FlexInt `json:"question1"`
	Question2 *model.FlexInt `json:"question2"`
	Question3 *model.FlexInt `json:"question3"`
	Question4 *model.FlexInt `json:"question4"`
	Question5 *model.FlexInt `json:"question5"`
	Question6 *model.FlexInt `json:"question6"`
	Question7 *model.FlexInt `json:"question7"`
	// Question8 is the free-text reflection.
	Question8 *string `json:"question8"`
}

func (in GAD7Input) answers() []*model.FlexInt {
	return []*model.FlexInt{
		in.Question1, in.Question2, in.Question3, in.Question4,
		in.Question5, in.Question6, in.Question7,
	}
}

type GAD7Status struct {
	HasGAD7 bool   `json:"hasGAD7"`
	Message string `json:"message"`
}

type recommender interface {
	Recommend(ctx context.Context, in PlanInput) (*model.Recommendation, error)
}

// AssessmentService scores the GAD-7, obtains a plan and schedules its
// materialization into therapy sessions.
type AssessmentService struct {
	gad7Repo         repository.GAD7Repository
	profileRepo      repository.ProfileRepository
	planner          recommender
	enqueuer         TaskEnqueuer
	cipher           *util.FieldCipher
	reflectionMinLen int
}

func NewAssessmentService(
	gad7Repo repository.GAD7Repository,
	profileRepo repository.ProfileRepository,
	planner recommender,
	enqueuer TaskEnqueuer,
	cipher *util.FieldCipher,
	reflectionMinLen int,
) *AssessmentService {
	return &AssessmentService{
		gad7Repo:         gad7Repo,
		profileRepo:      profileRepo,
		planner:          planner,
		enqueuer:         enqueuer,
		cipher:           cipher,
		reflectionMinLen: reflectionMinLen,
	}
}

func (s *AssessmentService) Create(ctx context.Context, userID int64, in GAD7Input) (*model.GAD7Result, error) {
	var answers [model.GAD7QuestionCount]int
	total := 0
	for i, a := range in.answers() {
		field := fmt.Sprintf("question%d", i+1)
		if a == nil {
			return nil, apperrors.FieldError(field, field+" is required")
		}
		v := int(*a)
		if v < 0 || v > 3 {
			return nil, apperrors.FieldError(field, field+" must be between 0 and 3")
		}
		answers[i] = v
		total += v
	}

	if in.Question8 == nil {
		return nil, apperrors.FieldError("question8", "question8 is required")
	}
	reflection := strings.TrimSpace(*in.Question8)
	if util.TextLength(reflection) < s.reflectionMinLen {
		return nil, apperrors.FieldError("question8",
			fmt.Sprintf("question8 must be at least %d characters", s.reflectionMinLen))
	}

	existing, err := s.gad7Repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("GAD-7 assessment")
	}

	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("Profile")
	}

	rec, err := s.planner.Recommend(ctx, PlanInput{
		Profile:    *profile,
		TotalScore: total,
		Reflection: reflection,
	})
	if err != nil {
		return nil, err
	}

	sealed, err := s.cipher.Seal(reflection)
	if err != nil {
		return nil, apperrors.Internal("Failed to encrypt reflection").WithCause(err)
	}

	severity := model.SeverityForScore(total)
	result, err := s.gad7Repo.Create(ctx, model.CreateGAD7Params{
		UserID:         userID,
		Answers:        answers,
		Reflection:     sealed,
		TotalScore:     total,
		SeverityLevel:  severity,
		Recommendation: *rec,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("GAD-7 assessment")
		}
		return nil, apperrors.Database(err)
	}
	result.Reflection = reflection

	// The cleanup job re-enqueues results that never got sessions, so a
	// failed enqueue is not fatal here.
	if err := s.enqueuer.Enqueue(ctx, jobs.KindMaterializePlan, jobs.MaterializePlanPayload{GAD7ResultID: result.ID}); err != nil {
		log.Error().Err(err).Int64("gad7ResultId", result.ID).Msg("failed to enqueue plan materialization")
	}

	log.Info().
		Int64("userId", userID).
		Int("totalScore", total).
		Str("severity", string(severity)).
		Int("sessionCount", rec.SessionCount).
		Msg("gad7 assessment recorded")

	return result, nil
}

func (s *AssessmentService) Check(ctx context.Context, userID int64) (*GAD7Status, error) {
	result, err := s.gad7Repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if result == nil {
		return &GAD7Status{HasGAD7: false, Message: "No GAD-7 assessment found for this user."}, nil
	}
	return &GAD7Status{HasGAD7: true, Message: "GAD-7 assessment found for this user."}, nil
}

func (s *AssessmentService) Results(ctx context.Context, userID int64) (*model.GAD7Result, error) {
	result, err := s.gad7Repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if result == nil {
		return nil, apperrors.NotFound("GAD-7 assessment")
	}

	reflection, err := s.cipher.Open(result.Reflection)
	if err != nil {
		return nil, apperrors.Internal("Failed to decrypt reflection").WithCause(err)
	}
	result.Reflection = reflection
	return result, nil
}
