package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/ai"
	"github.com/aithera/therapy-server-go/internal/database"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/jobs"
	"github.com/aithera/therapy-server-go/internal/metrics"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/prompt"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/sse"
	"github.com/aithera/therapy-server-go/internal/util"
)

const (
	operationWelcome = "welcome"
	operationChat    = "chat"
)

type ChatInput struct {
	SessionNumber *model.FlexInt `json:"sessionNumber"`
	Message       string         `json:"message"`
}

type ChatReply struct {
	Message string `json:"message"`
	Closed  bool   `json:"closed"`
}

type TherapyConfig struct {
	TurnLimit        int
	MessageMinLength int
	MessageMaxLength int
}

// TherapyService drives the per-user session state machine:
// not_started -> in_queue -> in_progress -> completed.
type TherapyService struct {
	db          database.Transactor
	sessionRepo repository.TherapySessionRepository
	messageRepo repository.TherapyMessageRepository
	gad7Repo    repository.GAD7Repository
	generator   ai.Generator
	enqueuer    TaskEnqueuer
	publisher   EventPublisher
	cfg         TherapyConfig
	now         func() time.Time
}

func NewTherapyService(
	db database.Transactor,
	sessionRepo repository.TherapySessionRepository,
	messageRepo repository.TherapyMessageRepository,
	gad7Repo repository.GAD7Repository,
	generator ai.Generator,
	enqueuer TaskEnqueuer,
	publisher EventPublisher,
	cfg TherapyConfig,
) *TherapyService {
	if cfg.TurnLimit < 1 {
		cfg.TurnLimit = 1
	}
	return &TherapyService{
		db:          db,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		gad7Repo:    gad7Repo,
		generator:   generator,
		enqueuer:    enqueuer,
		publisher:   publisher,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *TherapyService) ListSessions(ctx context.Context, userID int64) ([]model.TherapySession, error) {
	sessions, err := s.sessionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if sessions == nil {
		sessions = []model.TherapySession{}
	}
	return sessions, nil
}

// Messages returns the transcript of one of the user's sessions. Sessions of
// other users are reported as not found.
func (s *TherapyService) Messages(ctx context.Context, userID, sessionID int64) ([]model.TherapyMessage, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.UserID != userID {
		return nil, apperrors.NotFound("Session")
	}

	messages, err := s.messageRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if messages == nil {
		messages = []model.TherapyMessage{}
	}
	return messages, nil
}

// StartSession generates the therapist's opening message and moves a queued
// session to in_progress.
func (s *TherapyService) StartSession(ctx context.Context, userID int64, number int) (string, error) {
	if number <= 0 {
		return "", apperrors.FieldError("sessionNumber", "sessionNumber is required")
	}

	session, err := s.findSession(ctx, userID, number)
	if err != nil {
		return "", err
	}
	if err := startable(session.Status); err != nil {
		return "", err
	}
	count, err := s.messageRepo.CountBySessionID(ctx, session.ID)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if count > 0 {
		return "", apperrors.SessionAlreadyStarted()
	}

	in, err := s.sessionInput(ctx, session)
	if err != nil {
		return "", err
	}
	system, err := prompt.Therapist(in)
	if err != nil {
		return "", apperrors.Internal("Failed to build prompt").WithCause(err)
	}
	opening, err := prompt.Welcome(in)
	if err != nil {
		return "", apperrors.Internal("Failed to build prompt").WithCause(err)
	}

	reply, err := s.generator.Generate(ctx, ai.Request{
		Operation: operationWelcome,
		System:    system,
		Prompt:    opening,
	})
	if err != nil {
		return "", apperrors.External("therapy assistant", err)
	}
	reply = strings.TrimSpace(reply)

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessions := s.sessionRepo.WithTx(tx)
		messages := s.messageRepo.WithTx(tx)

		locked, err := sessions.LockByUserAndNumber(ctx, userID, number)
		if err != nil {
			return apperrors.Database(err)
		}
		if locked == nil {
			return apperrors.NotFound("Session")
		}
		if err := startable(locked.Status); err != nil {
			return err
		}
		count, err := messages.CountBySessionID(ctx, locked.ID)
		if err != nil {
			return apperrors.Database(err)
		}
		if count > 0 {
			return apperrors.SessionAlreadyStarted()
		}

		if _, err := messages.Create(ctx, model.CreateMessageParams{
			SessionID: locked.ID,
			Sender:    model.SenderAssistant,
			Message:   reply,
			CreatedAt: s.now(),
		}); err != nil {
			return apperrors.Database(err)
		}

		moved, err := sessions.TransitionStatus(ctx, locked.ID, model.SessionStatusInQueue, model.SessionStatusInProgress)
		if err != nil {
			return apperrors.Database(err)
		}
		if !moved {
			return apperrors.SessionAlreadyStarted()
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	metrics.SessionTransitionsTotal.WithLabelValues(string(model.SessionStatusInProgress)).Inc()
	log.Info().Int64("userId", userID).Int("sessionNumber", number).Msg("therapy session started")

	return reply, nil
}

// Chat records one user turn and the therapist's reply. The turn that reaches
// the configured limit closes the session, queues the next one and schedules
// summarization.
func (s *TherapyService) Chat(ctx context.Context, userID int64, in ChatInput) (*ChatReply, error) {
	if in.SessionNumber == nil || *in.SessionNumber <= 0 {
		return nil, apperrors.FieldError("sessionNumber", "sessionNumber is required")
	}
	number := int(*in.SessionNumber)

	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, apperrors.FieldError("message", "message is required")
	}
	if n := util.TextLength(text); n < s.cfg.MessageMinLength || n > s.cfg.MessageMaxLength {
		return nil, apperrors.FieldError("message",
			fmt.Sprintf("message must be between %d and %d characters", s.cfg.MessageMinLength, s.cfg.MessageMaxLength))
	}

	session, err := s.findSession(ctx, userID, number)
	if err != nil {
		return nil, err
	}
	if err := chattable(session.Status); err != nil {
		return nil, err
	}

	history, err := s.messageRepo.FindBySessionID(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	userTurns := 0
	turns := make([]ai.Turn, 0, len(history))
	for _, m := range history {
		role := ai.RoleModel
		if m.Sender == model.SenderUser {
			role = ai.RoleUser
			userTurns++
		}
		turns = append(turns, ai.Turn{Role: role, Text: m.Message})
	}
	closing := userTurns+1 >= s.cfg.TurnLimit

	sessionIn, err := s.sessionInput(ctx, session)
	if err != nil {
		return nil, err
	}
	system, err := prompt.Therapist(sessionIn)
	if err != nil {
		return nil, apperrors.Internal("Failed to build prompt").WithCause(err)
	}
	userPrompt := text
	if closing {
		if userPrompt, err = prompt.Closing(prompt.ClosingInput{Message: text}); err != nil {
			return nil, apperrors.Internal("Failed to build prompt").WithCause(err)
		}
	}

	reply, err := s.generator.Generate(ctx, ai.Request{
		Operation: operationChat,
		System:    system,
		History:   turns,
		Prompt:    userPrompt,
	})
	if err != nil {
		return nil, apperrors.External("therapy assistant", err)
	}
	reply = strings.TrimSpace(reply)

	var promoted bool
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessions := s.sessionRepo.WithTx(tx)
		messages := s.messageRepo.WithTx(tx)

		locked, err := sessions.LockByUserAndNumber(ctx, userID, number)
		if err != nil {
			return apperrors.Database(err)
		}
		if locked == nil || locked.Status != model.SessionStatusInProgress {
			return apperrors.Conflict("Session changed while the reply was generated")
		}
		count, err := messages.CountBySessionID(ctx, locked.ID)
		if err != nil {
			return apperrors.Database(err)
		}
		if count != len(history) {
			return apperrors.Conflict("Session changed while the reply was generated")
		}

		now := s.now()
		if _, err := messages.Create(ctx, model.CreateMessageParams{
			SessionID: locked.ID,
			Sender:    model.SenderUser,
			Message:   text,
			CreatedAt: now,
		}); err != nil {
			return apperrors.Database(err)
		}
		if _, err := messages.Create(ctx, model.CreateMessageParams{
			SessionID: locked.ID,
			Sender:    model.SenderAssistant,
			Message:   reply,
			CreatedAt: now,
		}); err != nil {
			return apperrors.Database(err)
		}

		if !closing {
			return nil
		}

		completed, err := sessions.TransitionStatus(ctx, locked.ID, model.SessionStatusInProgress, model.SessionStatusCompleted)
		if err != nil {
			return apperrors.Database(err)
		}
		if !completed {
			return apperrors.Conflict("Session changed while the reply was generated")
		}
		promoted, err = sessions.PromoteNext(ctx, userID, number)
		if err != nil {
			return apperrors.Database(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if closing {
		s.afterClose(ctx, userID, session, promoted)
	}

	return &ChatReply{Message: reply, Closed: closing}, nil
}

func (s *TherapyService) afterClose(ctx context.Context, userID int64, session *model.TherapySession, promoted bool) {
	metrics.SessionTransitionsTotal.WithLabelValues(string(model.SessionStatusCompleted)).Inc()
	if promoted {
		metrics.SessionTransitionsTotal.WithLabelValues(string(model.SessionStatusInQueue)).Inc()
	}

	log.Info().
		Int64("userId", userID).
		Int64("sessionId", session.ID).
		Int("sessionNumber", session.SessionNumber).
		Bool("nextQueued", promoted).
		Msg("therapy session completed")

	if err := s.enqueuer.Enqueue(ctx, jobs.KindSummarizeSession, jobs.SummarizeSessionPayload{SessionID: session.ID}); err != nil {
		log.Error().Err(err).Int64("sessionId", session.ID).Msg("failed to enqueue session summary")
	}

	data := map[string]any{"sessionNumber": session.SessionNumber}
	if promoted {
		data["nextSessionNumber"] = session.SessionNumber + 1
	}
	publish(ctx, s.publisher, userID, sse.EventSessionCompleted, data)
}

// MaterializePlan creates the therapy sessions planned for a GAD-7 result.
// Running it twice leaves the first set of rows untouched.
func (s *TherapyService) MaterializePlan(ctx context.Context, gad7ResultID int64) error {
	result, err := s.gad7Repo.FindByID(ctx, gad7ResultID)
	if err != nil {
		return fmt.Errorf("load gad7 result %d: %w", gad7ResultID, err)
	}
	if result == nil {
		log.Warn().Int64("gad7ResultId", gad7ResultID).Msg("gad7 result gone, skipping plan materialization")
		return nil
	}

	var inserted int64
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		inserted, err = s.sessionRepo.WithTx(tx).CreatePlan(ctx, result.UserID, result.ID, result.SessionPlan)
		return err
	})
	if err != nil {
		return fmt.Errorf("create sessions for gad7 result %d: %w", gad7ResultID, err)
	}

	if inserted == 0 {
		return nil
	}

	log.Info().
		Int64("userId", result.UserID).
		Int64("sessions", inserted).
		Msg("therapy plan materialized")
	publish(ctx, s.publisher, result.UserID, sse.EventPlanReady, map[string]int{"sessionCount": len(result.SessionPlan)})
	return nil
}

func (s *TherapyService) findSession(ctx context.Context, userID int64, number int) (*model.TherapySession, error) {
	session, err := s.sessionRepo.FindByUserAndNumber(ctx, userID, number)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

// sessionInput gathers the prompt context of a session: its plan entry, the
// programme's therapy types and either the previous session's summary or the
// planner's explanation.
func (s *TherapyService) sessionInput(ctx context.Context, session *model.TherapySession) (prompt.SessionInput, error) {
	in := prompt.SessionInput{
		SessionNumber: session.SessionNumber,
		Topic:         session.Topic,
		Goals:         session.Goals,
	}

	result, err := s.gad7Repo.FindByID(ctx, session.GAD7ResultID)
	if err != nil {
		return in, apperrors.Database(err)
	}
	if result != nil {
		in.TherapyTypes = result.TherapyTypes
		in.Explanation = result.Explanation
	}

	if session.SessionNumber > 1 {
		prev, err := s.sessionRepo.FindByUserAndNumber(ctx, session.UserID, session.SessionNumber-1)
		if err != nil {
			return in, apperrors.Database(err)
		}
		if prev != nil && prev.Summary != nil {
			in.PreviousSummary = *prev.Summary
		}
	}
	return in, nil
}

func startable(status model.SessionStatus) error {
	switch status {
	case model.SessionStatusCompleted:
		return apperrors.SessionAlreadyClosed()
	case model.SessionStatusInProgress:
		return apperrors.SessionAlreadyStarted()
	case model.SessionStatusNotStarted:
		return apperrors.SessionNotReady()
	}
	return nil
}

func chattable(status model.SessionStatus) error {
	switch status {
	case model.SessionStatusCompleted:
		return apperrors.SessionAlreadyClosed()
	case model.SessionStatusInQueue, model.SessionStatusNotStarted:
		return apperrors.SessionNotReady()
	}
	return nil
}
