package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/api/responses"
	"github.com/muebleria/cotizador-backend/api/validators"
	"github.com/muebleria/cotizador-backend/internal/catalog"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
	"github.com/muebleria/cotizador-backend/pkg/logger"
)

type createItemRequest struct {
	Name      string          `json:"name" validate:"required"`
	Kind      string          `json:"kind"`
	Material  string          `json:"material"`
	Size      string          `json:"size" validate:"omitempty,oneof=LARGE MEDIUM SMALL"`
	BasePrice decimal.Decimal `json:"base_price" validate:"money"`
	Stock     int             `json:"stock" validate:"gte=0"`
}

// ListItems returns the catalog, optionally filtered with ?status=ACTIVE|INACTIVE.
func ListItems(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok, err := validators.ParseQueryEnum(r, "status", func(v string) bool {
			return enums.ItemStatus(v).IsValid()
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.ItemStatus
		if ok {
			s := enums.ItemStatus(raw)
			status = &s
		}

		items, err := svc.ListItems(r.Context(), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func CreateItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), catalog.CreateItemInput{
			Name:      payload.Name,
			Kind:      payload.Kind,
			Material:  payload.Material,
			Size:      enums.ItemSize(payload.Size),
			BasePrice: payload.BasePrice,
			Stock:     payload.Stock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// SetItemStatus backs both the activate and deactivate routes.
func SetItemStatus(svc catalog.Service, status enums.ItemStatus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !status.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "unsupported status route"))
			return
		}

		item, err := svc.SetItemStatus(logg.WithItemID(r.Context(), id.String()), id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
