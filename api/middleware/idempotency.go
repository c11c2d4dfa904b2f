package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/muebleria/cotizador-backend/api/responses"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
	"github.com/muebleria/cotizador-backend/pkg/logger"
)

const (
	IdempotencyHeader      = "Idempotency-Key"
	defaultIdempotencyTTL  = 24 * time.Hour
	idempotencyLockTTL     = time.Minute
	maxIdempotencyKeyBytes = 255
)

// IdempotencyStore records one response per key.
type IdempotencyStore interface {
	IdempotencyKey(scope, id string) string
	LoadResponse(ctx context.Context, key string) (string, bool, error)
	ReserveResponse(ctx context.Context, key, payload string, ttl time.Duration) (bool, error)
	SaveResponse(ctx context.Context, key, payload string, ttl time.Duration) error
	ReleaseResponse(ctx context.Context, key string) error
}

type recordedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
}

// Idempotency makes unsafe requests on the wrapped route replayable. The key
// is reserved before the handler runs, so a concurrent request with the same
// key gets 409 until the first one finishes. The first non-5xx response is
// then recorded and returned verbatim to later requests with the same key and
// body. Reusing a key with a different body is a conflict. A nil store
// disables the check.
func Idempotency(store IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			id := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			switch {
			case id == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			case len(id) > maxIdempotencyKeyBytes:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(idempotencyScope(r), id)
			fingerprint := fingerprintBody(body)

			payload, found, err := store.LoadResponse(ctx, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if found {
				replay(ctx, logg, w, payload, fingerprint)
				return
			}

			placeholder, err := json.Marshal(recordedResponse{Fingerprint: fingerprint, Pending: true})
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency reservation"))
				return
			}
			reserved, err := store.ReserveResponse(ctx, key, string(placeholder), idempotencyLockTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				payload, found, err = store.LoadResponse(ctx, key)
				switch {
				case err != nil:
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				case found:
					replay(ctx, logg, w, payload, fingerprint)
				default:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotencyInFlight, "request with this idempotency key is in progress"))
				}
				return
			}

			// The record must outlive a client disconnect.
			storeCtx := context.WithoutCancel(ctx)
			logCtx := ctx
			if logg != nil {
				logCtx = logg.WithField(ctx, "idempotency_key", id)
			}
			finished := false
			defer func() {
				if !finished {
					release(storeCtx, logCtx, logg, store, key)
				}
			}()

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			finished = true

			if capture.status >= http.StatusInternalServerError {
				release(storeCtx, logCtx, logg, store, key)
				return
			}

			encoded, err := json.Marshal(recordedResponse{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				Fingerprint: fingerprint,
			})
			if err == nil {
				err = store.SaveResponse(storeCtx, key, string(encoded), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logCtx, "idempotency record not saved", err)
			}
		})
	}
}

func release(ctx, logCtx context.Context, logg *logger.Logger, store IdempotencyStore, key string) {
	if err := store.ReleaseResponse(ctx, key); err != nil && logg != nil {
		logg.Error(logCtx, "idempotency reservation not released", err)
	}
}

func replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, payload, fingerprint string) {
	var rec recordedResponse
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if rec.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if rec.Pending {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotencyInFlight, "request with this idempotency key is in progress"))
		return
	}
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// idempotencyScope keys records by route pattern so path params share a scope
// with their literal path.
func idempotencyScope(r *http.Request) string {
	path := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			path = pattern
		}
	}
	return r.Method + " " + strings.TrimSuffix(path, "/")
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (c *responseCapture) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
