package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/muebleria/cotizador-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Caller supplied ids are echoed into logs, so only short token-like values
// are trusted.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID tags the request with the caller's X-Request-Id, or a fresh uuid,
// and echoes it on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if !requestIDPattern.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := logger.ContextWithRequestID(r.Context(), id)
			if logg != nil {
				ctx = logg.WithRequestID(r.Context(), id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
