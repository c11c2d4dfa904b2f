package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/api/responses"
	"github.com/muebleria/cotizador-backend/api/validators"
	"github.com/muebleria/cotizador-backend/internal/catalog"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	"github.com/muebleria/cotizador-backend/pkg/logger"
)

// createModifierRequest takes percent points for PERCENTAGE (15 means +15%).
type createModifierRequest struct {
	Name  string          `json:"name" validate:"required"`
	Kind  string          `json:"kind" validate:"required,oneof=FIXED_ADD PERCENTAGE"`
	Value decimal.Decimal `json:"value" validate:"money"`
}

func ListModifiers(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mods, err := svc.ListModifiers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mods)
	}
}

func CreateModifier(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createModifierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mod, err := svc.CreateModifier(r.Context(), catalog.CreateModifierInput{
			Name:  payload.Name,
			Kind:  enums.ModifierKind(payload.Kind),
			Value: payload.Value,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, mod)
	}
}
