package sales

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/internal/repo"
	"github.com/muebleria/cotizador-backend/pkg/db/models"
)

// Repository persists sales and moves the stock counters they consume.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Item
	err := r.DB(ctx).Where("id IN ?", ids).Order("id asc").Find(&rows).Error
	return rows, repo.Fail(err, "load items")
}

func (r *Repository) ModifiersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Modifier, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Modifier
	err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, repo.Fail(err, "load modifiers")
}

// DecrementStock subtracts qty only when at least qty units remain. It reports
// false when the guard rejected the update.
func (r *Repository) DecrementStock(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	res := r.DB(ctx).Model(&models.Item{}).
		Where("id = ? AND stock >= ?", itemID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, repo.Fail(res.Error, "decrement stock")
	}
	return res.RowsAffected == 1, nil
}

// CreateSale inserts the sale together with its lines.
func (r *Repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	return repo.Fail(r.DB(ctx).Create(sale).Error, "create sale")
}

func (r *Repository) FindSale(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	lines := func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }
	if err := repo.NewBase(r.DB(ctx).Preload("Lines", lines)).First(ctx, &sale, "sale", "id = ?", id); err != nil {
		return nil, err
	}
	return &sale, nil
}
