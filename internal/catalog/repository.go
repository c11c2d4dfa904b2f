package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/internal/repo"
	"github.com/muebleria/cotizador-backend/pkg/db"
	"github.com/muebleria/cotizador-backend/pkg/db/models"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
)

const modifierNameIndex = "ux_modifiers_name"

// Repository persists items and modifiers.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// ListItems returns items ordered by creation; a nil status lists every item.
func (r *Repository) ListItems(ctx context.Context, status *enums.ItemStatus) ([]models.Item, error) {
	query := r.DB(ctx).Model(&models.Item{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var items []models.Item
	err := query.Order("created_at ASC").Order("id ASC").Find(&items).Error
	return items, repo.Fail(err, "list items")
}

func (r *Repository) FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.First(ctx, &item, "item", "id = ?", id); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	if err := r.DB(ctx).Create(item).Error; err != nil {
		return nil, repo.Fail(err, "insert item")
	}
	return item, nil
}

func (r *Repository) UpdateItemStatus(ctx context.Context, id uuid.UUID, status enums.ItemStatus) error {
	res := r.DB(ctx).Model(&models.Item{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return repo.Fail(res.Error, "update item status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return nil
}

func (r *Repository) ListModifiers(ctx context.Context) ([]models.Modifier, error) {
	var mods []models.Modifier
	err := r.DB(ctx).Order("created_at ASC").Order("id ASC").Find(&mods).Error
	return mods, repo.Fail(err, "list modifiers")
}

func (r *Repository) CreateModifier(ctx context.Context, mod *models.Modifier) (*models.Modifier, error) {
	if err := r.DB(ctx).Create(mod).Error; err != nil {
		if db.IsUniqueViolation(err, modifierNameIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "modifier name already exists").
				WithDetails(map[string]any{"name": mod.Name})
		}
		return nil, repo.Fail(err, "insert modifier")
	}
	return mod, nil
}
