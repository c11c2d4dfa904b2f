package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/muebleria/cotizador-backend/pkg/db/types"
)

// Sale is a settled cart. TotalPaid is the authoritative amount.
type Sale struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TotalPaid decimal.Decimal `gorm:"column:total_paid;type:numeric(14,2);not null"`
	LineCount int             `gorm:"column:line_count;not null"`
	Lines     []SaleLine      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Sale) TableName() string { return "sales" }

func (s *Sale) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SaleLine records one cart line as priced at settlement time.
type SaleLine struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SaleID      uuid.UUID         `gorm:"column:sale_id;type:uuid;not null"`
	Position    int               `gorm:"column:position;not null"`
	ItemID      uuid.UUID         `gorm:"column:item_id;type:uuid;not null"`
	ItemName    string            `gorm:"column:item_name;not null"`
	Quantity    int               `gorm:"column:quantity;not null"`
	ModifierIDs dbtypes.UUIDArray `gorm:"column:modifier_ids;not null"`
	UnitPrice   decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal   `gorm:"column:line_total;type:numeric(14,2);not null"`
}

func (SaleLine) TableName() string { return "sale_lines" }

func (l *SaleLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
