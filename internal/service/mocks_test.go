package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/aithera/therapy-server-go/internal/ai"
	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/jobs"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/sse"
)

// fakeTx runs the function without a real transaction; mocked repositories
// return themselves from WithTx.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	f.calls++
	return fn(nil)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindAll(ctx context.Context, limit, offset int) ([]model.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, id int64, params model.UpdateUserParams) (*model.User, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

type mockRefreshRepo struct {
	mock.Mock
}

func (m *mockRefreshRepo) Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefreshToken), args.Error(1)
}

func (m *mockRefreshRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefreshToken), args.Error(1)
}

func (m *mockRefreshRepo) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshRepo) WithTx(tx *sqlx.Tx) repository.RefreshTokenRepository {
	return m
}

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID int64) (*model.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockProfileRepo) Create(ctx context.Context, params model.CreateProfileParams) (*model.Profile, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockProfileRepo) Update(ctx context.Context, userID int64, params model.UpdateProfileParams) (*model.Profile, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockProfileRepo) WithTx(tx *sqlx.Tx) repository.ProfileRepository {
	return m
}

type mockGAD7Repo struct {
	mock.Mock
}

func (m *mockGAD7Repo) FindByID(ctx context.Context, id int64) (*model.GAD7Result, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GAD7Result), args.Error(1)
}

func (m *mockGAD7Repo) FindByUserID(ctx context.Context, userID int64) (*model.GAD7Result, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GAD7Result), args.Error(1)
}

func (m *mockGAD7Repo) Create(ctx context.Context, params model.CreateGAD7Params) (*model.GAD7Result, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GAD7Result), args.Error(1)
}

func (m *mockGAD7Repo) FindWithoutSessions(ctx context.Context, createdBefore time.Time, limit int) ([]model.GAD7Result, error) {
	args := m.Called(ctx, createdBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.GAD7Result), args.Error(1)
}

func (m *mockGAD7Repo) WithTx(tx *sqlx.Tx) repository.GAD7Repository {
	return m
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id int64) (*model.TherapySession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapySession), args.Error(1)
}

func (m *mockSessionRepo) FindByUserID(ctx context.Context, userID int64) ([]model.TherapySession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TherapySession), args.Error(1)
}

func (m *mockSessionRepo) FindByUserAndNumber(ctx context.Context, userID int64, number int) (*model.TherapySession, error) {
	args := m.Called(ctx, userID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapySession), args.Error(1)
}

func (m *mockSessionRepo) LockByUserAndNumber(ctx context.Context, userID int64, number int) (*model.TherapySession, error) {
	args := m.Called(ctx, userID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapySession), args.Error(1)
}

func (m *mockSessionRepo) CreatePlan(ctx context.Context, userID, gad7ResultID int64, plan model.SessionPlan) (int64, error) {
	args := m.Called(ctx, userID, gad7ResultID, plan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) TransitionStatus(ctx context.Context, id int64, from, to model.SessionStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) PromoteNext(ctx context.Context, userID int64, number int) (bool, error) {
	args := m.Called(ctx, userID, number)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) UpdateSummary(ctx context.Context, id int64, summary string, wellnessScore int) error {
	args := m.Called(ctx, id, summary, wellnessScore)
	return args.Error(0)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.TherapySessionRepository {
	return m
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.TherapyMessage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapyMessage), args.Error(1)
}

func (m *mockMessageRepo) FindBySessionID(ctx context.Context, sessionID int64) ([]model.TherapyMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TherapyMessage), args.Error(1)
}

func (m *mockMessageRepo) CountBySessionID(ctx context.Context, sessionID int64) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) WithTx(tx *sqlx.Tx) repository.TherapyMessageRepository {
	return m
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req ai.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, kind jobs.Kind, payload any) error {
	args := m.Called(ctx, kind, payload)
	return args.Error(0)
}

type recordingPublisher struct {
	events []sse.Event
	users  []int64
}

func (p *recordingPublisher) Publish(ctx context.Context, userID int64, event sse.Event) error {
	p.users = append(p.users, userID)
	p.events = append(p.events, event)
	return nil
}
