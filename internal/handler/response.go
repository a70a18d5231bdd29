package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/middleware"
	"github.com/aithera/therapy-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return apperrors.New(apperrors.ErrCodeInvalidInput, "Request body too large")
		}
		return apperrors.ValidationError("Invalid request body")
	}
	return nil
}

// principal returns the caller or writes 401 when the route was mounted
// without the auth middleware.
func principal(w http.ResponseWriter, r *http.Request) (*model.Principal, bool) {
	p := middleware.PrincipalFrom(r.Context())
	if p == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return nil, false
	}
	return p, true
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.FieldError(name, "Invalid "+name)
	}
	return id, nil
}
