package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/aithera/therapy-server-go/internal/audit"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/model"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

// PrincipalFrom returns the caller resolved by AuthMiddleware, or nil.
func PrincipalFrom(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*model.Principal); ok {
		return p
	}
	return nil
}

func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.Principal, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.auth.Authenticate(r.Context(), extractToken(r))
		if err != nil {
			if code := apperrors.GetCode(err); code == apperrors.ErrCodeInvalidToken || code == apperrors.ErrCodeTokenExpired {
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventAuthFailure,
					Details: map[string]any{"code": string(code)},
				})
			}
			httputil.WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFrom(r.Context())
		if principal == nil {
			httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
			return
		}
		if !principal.IsAdmin {
			httputil.WriteError(w, apperrors.Forbidden("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken reads the bearer header. EventSource cannot set headers, so
// the token query parameter is accepted as a fallback.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return r.URL.Query().Get("token")
}
