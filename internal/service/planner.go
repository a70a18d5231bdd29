package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/ai"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/prompt"
)

const operationPlan = "plan"

// Planner turns a profile and GAD-7 answers into a validated therapy
// recommendation.
type Planner struct {
	generator   ai.Generator
	maxSessions int
	maxAttempts int
}

func NewPlanner(generator ai.Generator, maxSessions, maxAttempts int) *Planner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Planner{
		generator:   generator,
		maxSessions: maxSessions,
		maxAttempts: maxAttempts,
	}
}

type PlanInput struct {
	Profile    model.Profile
	TotalScore int
	Reflection string
}

// Recommend asks the model for a plan. Unparseable or invalid output is
// retried up to maxAttempts; transport failures are not.
func (p *Planner) Recommend(ctx context.Context, in PlanInput) (*model.Recommendation, error) {
	text, err := prompt.Planner(prompt.PlannerInput{
		Profile:     in.Profile,
		TotalScore:  in.TotalScore,
		Reflection:  in.Reflection,
		MaxSessions: p.maxSessions,
	})
	if err != nil {
		return nil, apperrors.Internal("Failed to build planner prompt").WithCause(err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		raw, err := p.generator.Generate(ctx, ai.Request{
			Operation: operationPlan,
			Prompt:    text,
			JSON:      true,
		})
		if err != nil {
			return nil, apperrors.External("therapy planner", err)
		}

		rec, err := p.decode(raw)
		if err == nil {
			return rec, nil
		}

		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("planner returned invalid output")
	}

	return nil, apperrors.PlannerParse(lastErr)
}

func (p *Planner) decode(raw string) (*model.Recommendation, error) {
	rec, err := ai.DecodeJSON[model.Recommendation](raw)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(p.maxSessions); err != nil {
		return nil, &ai.ParseError{Raw: raw, Reason: err.Error()}
	}
	return rec, nil
}
