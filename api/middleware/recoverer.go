package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/muebleria/cotizador-backend/api/responses"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
	"github.com/muebleria/cotizador-backend/pkg/logger"
)

// Recoverer answers a panicking handler with the INTERNAL_ERROR envelope.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"method": r.Method, "path": r.URL.Path})
				}
				cause := fmt.Errorf("recovered panic: %v", v)
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "handler panicked"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
