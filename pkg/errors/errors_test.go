package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
		exposed   bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true, exposed: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found", exposed: true},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true, exposed: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true, exposed: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true, exposed: true},
		{code: CodeIdempotencyInFlight, status: http.StatusConflict, publicMsg: "request already in progress", retryable: true, exposed: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", exposed: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		assert.Equal(t, tt.status, meta.HTTPStatus, "status for %s", tt.code)
		assert.Equal(t, tt.publicMsg, meta.PublicMessage, "public message for %s", tt.code)
		assert.Equal(t, tt.retryable, meta.Retryable, "retryable for %s", tt.code)
		assert.Equal(t, tt.detailsOK, meta.DetailsAllowed, "details allowed for %s", tt.code)
		assert.Equal(t, tt.exposed, meta.ExposeMessage, "message exposed for %s", tt.code)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "quantity must be at least 1")
	require.Equal(t, CodeValidation, base.Code())
	require.Equal(t, "quantity must be at least 1", base.Message())
	require.Nil(t, base.Details())

	base.WithDetails(map[string]any{"field": "quantity"})
	require.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	require.True(t, stdErrors.Is(wrapped, cause))
	require.Equal(t, CodeConflict, wrapped.Code())
}

func TestAsFindsTypedErrorThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "item not found"))
	got := As(err)
	require.NotNil(t, got)
	require.Equal(t, CodeNotFound, got.Code())
	require.Nil(t, As(nil))

	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(err, CodeConflict))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
}

func TestDumpWalksChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection refused"), "db: insert sale")
	dump := Dump(err)
	assert.Equal(t, CodeDependency, dump.Code)
	assert.Len(t, dump.Chain, 2)
	assert.Nil(t, dump.PG)
	assert.NotContains(t, dump.Fields(), "pg_code")
}

func TestDumpExtractsPostgresDiagnostics(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23514", Message: "check violation", TableName: "items", ConstraintName: "items_stock_check"}
	dump := Dump(Wrap(CodeInternal, fmt.Errorf("decrement: %w", pgxErr), "settle failed"))
	require.NotNil(t, dump.PG)
	assert.Equal(t, "23514", dump.PG.Code)
	assert.Equal(t, "items_stock_check", dump.Fields()["pg_constraint"])

	pqErr := &pq.Error{Code: "23505", Table: "sales"}
	dump = Dump(fmt.Errorf("insert: %w", pqErr))
	require.NotNil(t, dump.PG)
	assert.Equal(t, "23505", dump.PG.Code)
	assert.Equal(t, "sales", dump.PG.Table)
}
