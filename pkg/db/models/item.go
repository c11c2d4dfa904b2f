package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/pkg/enums"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
)

// Item is a sellable furniture piece and its authoritative stock counter.
type Item struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name      string           `gorm:"column:name;not null"`
	Kind      string           `gorm:"column:kind;not null;default:''"`
	Material  string           `gorm:"column:material;not null;default:''"`
	Size      enums.ItemSize   `gorm:"column:size;type:text;not null;default:'MEDIUM'"`
	BasePrice decimal.Decimal  `gorm:"column:base_price;type:numeric(12,2);not null"`
	Stock     int              `gorm:"column:stock;not null"`
	Status    enums.ItemStatus `gorm:"column:status;type:text;not null;default:'ACTIVE'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }

// BeforeCreate assigns the primary key so inserts behave the same on every dialect.
func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// PricingItem projects the row into the snapshot shape used by quotations.
func (i Item) PricingItem() pricing.Item {
	return pricing.Item{
		ID:        i.ID,
		Name:      i.Name,
		BasePrice: i.BasePrice,
		Stock:     i.Stock,
		Status:    i.Status,
	}
}
