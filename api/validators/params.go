package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
)

// ParseUUIDParam reads a chi URL parameter as a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// ParseQueryEnum reads an optional query parameter and checks it with valid.
func ParseQueryEnum(r *http.Request, key string, valid func(string) bool) (string, bool, error) {
	raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" {
		return "", false, nil
	}
	if !valid(raw) {
		return "", false, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]any{"field": key, "value": raw})
	}
	return raw, true, nil
}
