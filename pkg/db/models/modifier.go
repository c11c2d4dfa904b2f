package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/pkg/enums"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
)

// Modifier is a price add-on. PERCENTAGE values are stored as fractions.
type Modifier struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name      string             `gorm:"column:name;not null;uniqueIndex:ux_modifiers_name"`
	Kind      enums.ModifierKind `gorm:"column:kind;type:text;not null"`
	Value     decimal.Decimal    `gorm:"column:value;type:numeric(12,4);not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (Modifier) TableName() string { return "modifiers" }

func (m *Modifier) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m Modifier) PricingModifier() pricing.Modifier {
	return pricing.Modifier{
		ID:    m.ID,
		Name:  m.Name,
		Kind:  m.Kind,
		Value: m.Value,
	}
}
