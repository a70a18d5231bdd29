package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/ai"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/prompt"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/sse"
)

const operationSummary = "summary"

type sessionSummary struct {
	Summary       string `json:"summary"`
	WellnessScore *int   `json:"wellness_score"`
}

func (s *sessionSummary) Validate() error {
	if strings.TrimSpace(s.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	if s.WellnessScore == nil {
		return fmt.Errorf("wellness_score is missing")
	}
	if *s.WellnessScore < 0 || *s.WellnessScore > 100 {
		return fmt.Errorf("wellness_score %d outside 0..100", *s.WellnessScore)
	}
	return nil
}

// Summarizer writes the summary and wellness score of a completed session.
// It never changes the session's status.
type Summarizer struct {
	sessionRepo repository.TherapySessionRepository
	messageRepo repository.TherapyMessageRepository
	generator   ai.Generator
	publisher   EventPublisher
}

func NewSummarizer(
	sessionRepo repository.TherapySessionRepository,
	messageRepo repository.TherapyMessageRepository,
	generator ai.Generator,
	publisher EventPublisher,
) *Summarizer {
	return &Summarizer{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		generator:   generator,
		publisher:   publisher,
	}
}

func (s *Summarizer) SummarizeSession(ctx context.Context, sessionID int64) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session %d: %w", sessionID, err)
	}
	if session == nil {
		log.Warn().Int64("sessionId", sessionID).Msg("session gone, skipping summary")
		return nil
	}
	if session.Status != model.SessionStatusCompleted {
		log.Warn().
			Int64("sessionId", sessionID).
			Str("status", string(session.Status)).
			Msg("session not completed, skipping summary")
		return nil
	}

	transcript, err := s.messageRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load transcript of session %d: %w", sessionID, err)
	}

	text, err := prompt.Summary(prompt.SummaryInput{
		SessionNumber: session.SessionNumber,
		Topic:         session.Topic,
		Goals:         session.Goals,
		Transcript:    transcript,
	})
	if err != nil {
		return err
	}

	raw, err := s.generator.Generate(ctx, ai.Request{
		Operation: operationSummary,
		Prompt:    text,
		JSON:      true,
	})
	if err != nil {
		return apperrors.External("session summarizer", err)
	}

	out, err := ai.DecodeJSON[sessionSummary](raw)
	if err != nil {
		return apperrors.SummarizerParse(err)
	}

	summary := strings.TrimSpace(out.Summary)
	if err := s.sessionRepo.UpdateSummary(ctx, session.ID, summary, *out.WellnessScore); err != nil {
		return fmt.Errorf("store summary of session %d: %w", sessionID, err)
	}

	log.Info().
		Int64("userId", session.UserID).
		Int64("sessionId", session.ID).
		Int("wellnessScore", *out.WellnessScore).
		Msg("session summarized")

	publish(ctx, s.publisher, session.UserID, sse.EventSummaryReady, map[string]int{
		"sessionNumber": session.SessionNumber,
		"wellnessScore": *out.WellnessScore,
	})
	return nil
}
