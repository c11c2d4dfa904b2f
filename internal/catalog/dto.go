package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/pkg/db/models"
	"github.com/muebleria/cotizador-backend/pkg/enums"
)

// ItemDTO is the wire shape of an item.
type ItemDTO struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Kind      string           `json:"kind"`
	Material  string           `json:"material"`
	Size      enums.ItemSize   `json:"size"`
	BasePrice decimal.Decimal  `json:"base_price"`
	Stock     int              `json:"stock"`
	Status    enums.ItemStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// ModifierDTO is the wire shape of a modifier. PERCENTAGE values are fractions.
type ModifierDTO struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Kind      enums.ModifierKind `json:"kind"`
	Value     decimal.Decimal    `json:"value"`
	CreatedAt time.Time          `json:"created_at"`
}

func ItemFromModel(m models.Item) ItemDTO {
	return ItemDTO{
		ID:        m.ID,
		Name:      m.Name,
		Kind:      m.Kind,
		Material:  m.Material,
		Size:      m.Size,
		BasePrice: m.BasePrice,
		Stock:     m.Stock,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

func ModifierFromModel(m models.Modifier) ModifierDTO {
	return ModifierDTO{
		ID:        m.ID,
		Name:      m.Name,
		Kind:      m.Kind,
		Value:     m.Value,
		CreatedAt: m.CreatedAt,
	}
}
