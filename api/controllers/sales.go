package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/muebleria/cotizador-backend/api/responses"
	"github.com/muebleria/cotizador-backend/api/validators"
	"github.com/muebleria/cotizador-backend/internal/sales"
	"github.com/muebleria/cotizador-backend/pkg/logger"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
)

type cartLine struct {
	ItemID      uuid.UUID   `json:"item_id" validate:"required"`
	Quantity    int         `json:"quantity" validate:"gte=1,lte=1000000"`
	ModifierIDs []uuid.UUID `json:"modifier_ids"`
}

// quoteRequest allows an empty cart, which quotes to zero.
type quoteRequest struct {
	Lines []cartLine `json:"lines" validate:"dive"`
}

type saleRequest struct {
	Lines []cartLine `json:"lines" validate:"required,min=1,dive"`
}

func toPricingLines(lines []cartLine) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, pricing.Line{
			ItemID:      line.ItemID,
			Quantity:    line.Quantity,
			ModifierIDs: line.ModifierIDs,
		})
	}
	return out
}

func CreateQuote(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), toPricingLines(payload.Lines))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// SettleSale commits the cart. Rejections keep the server's message so the
// storefront can show it verbatim.
func SettleSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload saleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Settle(r.Context(), toPricingLines(payload.Lines))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func GetSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := svc.GetSale(logg.WithSaleID(r.Context(), id.String()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}
