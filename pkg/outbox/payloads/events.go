package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/pkg/enums"
)

// ItemCreatedEvent announces a new catalog item.
type ItemCreatedEvent struct {
	ItemID    uuid.UUID        `json:"item_id"`
	Name      string           `json:"name"`
	BasePrice decimal.Decimal  `json:"base_price"`
	Stock     int              `json:"stock"`
	Status    enums.ItemStatus `json:"status"`
}

// ItemStatusChangedEvent is emitted on activate/deactivate.
type ItemStatusChangedEvent struct {
	ItemID         uuid.UUID        `json:"item_id"`
	PreviousStatus enums.ItemStatus `json:"previous_status"`
	Status         enums.ItemStatus `json:"status"`
}

// ModifierCreatedEvent announces a new modifier. Value is already normalized.
type ModifierCreatedEvent struct {
	ModifierID uuid.UUID          `json:"modifier_id"`
	Name       string             `json:"name"`
	Kind       enums.ModifierKind `json:"kind"`
	Value      decimal.Decimal    `json:"value"`
}

// SaleSettledEvent carries the authoritative outcome of a settlement.
type SaleSettledEvent struct {
	SaleID    uuid.UUID         `json:"sale_id"`
	TotalPaid decimal.Decimal   `json:"total_paid"`
	Lines     []SaleSettledLine `json:"lines"`
}

type SaleSettledLine struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}
