package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
)

type lineBody struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

type cartBody struct {
	Lines []lineBody `json:"lines" validate:"required,min=1,dive"`
}

func TestDecodeJSONBodyValidatesNestedFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[{"item_id":"a","quantity":0}]}`))
	var body cartBody
	err := DecodeJSONBody(r, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Equal(t, "quantity must be 1 or greater", details["lines[0].quantity"])
}

type priceBody struct {
	Price decimal.Decimal `json:"price" validate:"money"`
}

func TestMoneyRejectsNegativeAmounts(t *testing.T) {
	require.NoError(t, ValidateStruct(&priceBody{Price: decimal.RequireFromString("0")}))

	err := ValidateStruct(&priceBody{Price: decimal.RequireFromString("-0.01")})
	require.Error(t, err)
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Equal(t, "price must be a non-negative amount", details["price"])
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[{"item_id":"a","quantity":1}]} {}`))
	var body cartBody
	err := DecodeJSONBody(r, &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[],"extra":true}`))
	var body cartBody
	err := DecodeJSONBody(r, &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRequiresLines(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[]}`))
	var body cartBody
	err := DecodeJSONBody(r, &body)
	require.Error(t, err)
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Contains(t, details, "lines")
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemId", id.String())
	got, err := ParseUUIDParam(r, "itemId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	r = withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemId", "nope")
	_, err = ParseUUIDParam(r, "itemId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryEnum(t *testing.T) {
	valid := func(v string) bool { return v == "ACTIVE" || v == "INACTIVE" }

	r := httptest.NewRequest(http.MethodGet, "/?status=active", nil)
	got, ok, err := ParseQueryEnum(r, "status", valid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ACTIVE", got)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok, err = ParseQueryEnum(r, "status", valid)
	require.NoError(t, err)
	assert.False(t, ok)

	r = httptest.NewRequest(http.MethodGet, "/?status=gone", nil)
	_, _, err = ParseQueryEnum(r, "status", valid)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
