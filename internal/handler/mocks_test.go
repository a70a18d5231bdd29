package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aithera/therapy-server-go/internal/middleware"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/service"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Signup(ctx context.Context, in service.SignupInput) (*model.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *mockAuthService) IsAuthenticated(ctx context.Context, refreshToken string) bool {
	args := m.Called(ctx, refreshToken)
	return args.Bool(0)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) (int64, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) List(ctx context.Context, limit, offset int) (*service.UserList, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UserList), args.Error(1)
}

func (m *mockUserService) Get(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserService) Create(ctx context.Context, in service.CreateUserInput) (*model.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserService) Update(ctx context.Context, id int64, in service.UpdateUserInput) (*model.User, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockProfileService struct {
	mock.Mock
}

func (m *mockProfileService) Get(ctx context.Context, userID int64) (*model.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockProfileService) Check(ctx context.Context, userID int64) (*service.ProfileStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProfileStatus), args.Error(1)
}

func (m *mockProfileService) Create(ctx context.Context, userID int64, in service.ProfileInput) (*model.Profile, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockProfileService) Update(ctx context.Context, userID int64, in service.ProfileInput) (*model.Profile, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

type mockAssessmentService struct {
	mock.Mock
}

func (m *mockAssessmentService) Create(ctx context.Context, userID int64, in service.GAD7Input) (*model.GAD7Result, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GAD7Result), args.Error(1)
}

func (m *mockAssessmentService) Check(ctx context.Context, userID int64) (*service.GAD7Status, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.GAD7Status), args.Error(1)
}

func (m *mockAssessmentService) Results(ctx context.Context, userID int64) (*model.GAD7Result, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GAD7Result), args.Error(1)
}

type mockTherapyService struct {
	mock.Mock
}

func (m *mockTherapyService) ListSessions(ctx context.Context, userID int64) ([]model.TherapySession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TherapySession), args.Error(1)
}

func (m *mockTherapyService) Messages(ctx context.Context, userID, sessionID int64) ([]model.TherapyMessage, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TherapyMessage), args.Error(1)
}

func (m *mockTherapyService) StartSession(ctx context.Context, userID int64, number int) (string, error) {
	args := m.Called(ctx, userID, number)
	return args.String(0), args.Error(1)
}

func (m *mockTherapyService) Chat(ctx context.Context, userID int64, in service.ChatInput) (*service.ChatReply, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatReply), args.Error(1)
}

func passThrough(next http.Handler) http.Handler { return next }

// asUser installs a principal the way the auth middleware would.
func asUser(userID int64, admin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithPrincipal(r.Context(), &model.Principal{UserID: userID, IsAdmin: admin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func mount(pattern string, routes chi.Router, mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mws...)
	r.Mount(pattern, routes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
