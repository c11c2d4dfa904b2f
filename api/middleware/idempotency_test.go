package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) LoadResponse(_ context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeStore) ReserveResponse(_ context.Context, key, payload string, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = payload
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) SaveResponse(_ context.Context, key, payload string, ttl time.Duration) error {
	f.data[key] = payload
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) ReleaseResponse(_ context.Context, key string) error {
	delete(f.data, key)
	delete(f.ttls, key)
	return nil
}

func newIdempotentRouter(store *fakeStore, status int, calls *int) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.With(Idempotency(store, time.Hour, nil)).Post("/sales", func(w http.ResponseWriter, r *http.Request) {
			*calls++
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = fmt.Fprintf(w, `{"call":%d,"echo":%q}`, *calls, string(body))
		})
		r.With(Idempotency(store, time.Hour, nil)).Get("/sales", func(w http.ResponseWriter, r *http.Request) {
			*calls++
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func post(h http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := newIdempotentRouter(store, http.StatusCreated, &calls)

	first := post(h, "/api/sales", "k1", `{"lines":[]}`)
	second := post(h, "/api/sales", "k1", `{"lines":[]}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))

	key := store.IdempotencyKey("POST /api/sales", "k1")
	assert.Equal(t, time.Hour, store.ttls[key])
}

func TestIdempotencyRejectsDifferentBodyForSameKey(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := newIdempotentRouter(store, http.StatusCreated, &calls)

	post(h, "/api/sales", "k1", `{"lines":[1]}`)
	w := post(h, "/api/sales", "k1", `{"lines":[2]}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_KEY_REUSED")
}

func TestIdempotencyRequiresKey(t *testing.T) {
	calls := 0
	h := newIdempotentRouter(newFakeStore(), http.StatusCreated, &calls)

	w := post(h, "/api/sales", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, calls)
}

func TestIdempotencySkipsSafeMethodsAndNilStore(t *testing.T) {
	calls := 0
	h := newIdempotentRouter(newFakeStore(), http.StatusOK, &calls)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sales", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, calls)

	r := chi.NewRouter()
	r.With(Idempotency(nil, 0, nil)).Post("/api/sales", func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	post(r, "/api/sales", "", `{}`)
	assert.Equal(t, 3, calls)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := newIdempotentRouter(store, http.StatusServiceUnavailable, &calls)

	post(h, "/api/sales", "k1", `{}`)
	post(h, "/api/sales", "k1", `{}`)
	assert.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	calls := 0
	h := newIdempotentRouter(newFakeStore(), http.StatusCreated, &calls)

	w := post(h, "/api/sales", strings.Repeat("k", 256), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyStoreFailureIsDependencyError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	calls := 0
	h := newIdempotentRouter(store, http.StatusCreated, &calls)

	w := post(h, "/api/sales", "k1", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyConcurrentSameKeyIsInFlight(t *testing.T) {
	store := newFakeStore()
	var nested *httptest.ResponseRecorder
	calls := 0

	r := chi.NewRouter()
	r.With(Idempotency(store, time.Hour, nil)).Post("/api/sales", func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls == 1 {
			// A duplicate submit arrives while the first one is still settling.
			nested = post(r, "/api/sales", "k1", `{}`)
		}
		w.WriteHeader(http.StatusCreated)
	})

	first := post(r, "/api/sales", "k1", `{}`)
	require.NotNil(t, nested)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusConflict, nested.Code)
	assert.Contains(t, nested.Body.String(), "IDEMPOTENCY_IN_FLIGHT")

	replayed := post(r, "/api/sales", "k1", `{}`)
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "true", replayed.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyPendingRecordWithOtherBodyIsReuse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := newIdempotentRouter(store, http.StatusCreated, &calls)

	key := store.IdempotencyKey("POST /api/sales", "k1")
	store.data[key] = `{"status":0,"body":null,"fingerprint":"other","pending":true}`

	w := post(h, "/api/sales", "k1", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_KEY_REUSED")
	assert.Zero(t, calls)
}

func TestIdempotencyReleasesKeyWhenHandlerPanics(t *testing.T) {
	store := newFakeStore()
	calls := 0

	r := chi.NewRouter()
	r.With(Idempotency(store, time.Hour, nil)).Post("/api/sales", func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	})

	assert.Panics(t, func() { post(r, "/api/sales", "k1", `{}`) })
	assert.Empty(t, store.data)

	w := post(r, "/api/sales", "k1", `{}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, calls)
}
