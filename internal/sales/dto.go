package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/pkg/db/models"
)

// SettlementResult is returned to the storefront after a committed sale.
type SettlementResult struct {
	Message   string          `json:"message"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	SaleID    uuid.UUID       `json:"sale_id"`
}

type SaleDTO struct {
	ID        uuid.UUID       `json:"id"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Lines     []SaleLineDTO   `json:"lines"`
	CreatedAt time.Time       `json:"created_at"`
}

type SaleLineDTO struct {
	ItemID      uuid.UUID       `json:"item_id"`
	ItemName    string          `json:"item_name"`
	Quantity    int             `json:"quantity"`
	ModifierIDs []uuid.UUID     `json:"modifier_ids"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func SaleFromModel(m models.Sale) SaleDTO {
	lines := make([]SaleLineDTO, 0, len(m.Lines))
	for _, line := range m.Lines {
		mods := []uuid.UUID(line.ModifierIDs)
		if mods == nil {
			mods = []uuid.UUID{}
		}
		lines = append(lines, SaleLineDTO{
			ItemID:      line.ItemID,
			ItemName:    line.ItemName,
			Quantity:    line.Quantity,
			ModifierIDs: mods,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return SaleDTO{
		ID:        m.ID,
		TotalPaid: m.TotalPaid,
		Lines:     lines,
		CreatedAt: m.CreatedAt,
	}
}
