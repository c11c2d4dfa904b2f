package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/pkg/db/models"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
	"github.com/muebleria/cotizador-backend/pkg/logger"
	"github.com/muebleria/cotizador-backend/pkg/outbox"
	"github.com/muebleria/cotizador-backend/pkg/outbox/payloads"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
)

// Service manages the furniture catalog.
type Service interface {
	ListItems(ctx context.Context, status *enums.ItemStatus) ([]ItemDTO, error)
	ListModifiers(ctx context.Context) ([]ModifierDTO, error)
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	CreateModifier(ctx context.Context, input CreateModifierInput) (*ModifierDTO, error)
	SetItemStatus(ctx context.Context, id uuid.UUID, status enums.ItemStatus) (*ItemDTO, error)
	Snapshot(ctx context.Context) (*pricing.Snapshot, error)
}

// CreateItemInput is validated by CreateItem. An empty Size means the default.
type CreateItemInput struct {
	Name      string
	Kind      string
	Material  string
	Size      enums.ItemSize
	BasePrice decimal.Decimal
	Stock     int
}

// CreateModifierInput carries a human-entered value: percent points for
// PERCENTAGE (15 means +15%), an absolute amount for FIXED_ADD.
type CreateModifierInput struct {
	Name  string
	Kind  enums.ModifierKind
	Value decimal.Decimal
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, logg: logg}, nil
}

func (s *service) ListItems(ctx context.Context, status *enums.ItemStatus) ([]ItemDTO, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid item status %q", *status))
	}
	rows, err := s.repo.ListItems(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ItemFromModel(row))
	}
	return out, nil
}

func (s *service) ListModifiers(ctx context.Context) ([]ModifierDTO, error) {
	rows, err := s.repo.ListModifiers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ModifierDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ModifierFromModel(row))
	}
	return out, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	item, err := validateItemInput(input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).CreateItem(ctx, item); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemCreated,
			AggregateType: enums.AggregateItem,
			AggregateID:   item.ID,
			Source:        &outbox.Source{Surface: "admin"},
			Data: payloads.ItemCreatedEvent{
				ItemID:    item.ID,
				Name:      item.Name,
				BasePrice: item.BasePrice,
				Stock:     item.Stock,
				Status:    item.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithItemID(ctx, item.ID.String()), "catalog item created")
	dto := ItemFromModel(*item)
	return &dto, nil
}

func (s *service) CreateModifier(ctx context.Context, input CreateModifierInput) (*ModifierDTO, error) {
	mod, err := validateModifierInput(input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).CreateModifier(ctx, mod); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventModifierCreated,
			AggregateType: enums.AggregateModifier,
			AggregateID:   mod.ID,
			Source:        &outbox.Source{Surface: "admin"},
			Data: payloads.ModifierCreatedEvent{
				ModifierID: mod.ID,
				Name:       mod.Name,
				Kind:       mod.Kind,
				Value:      mod.Value,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "modifier_id", mod.ID.String()), "catalog modifier created")
	dto := ModifierFromModel(*mod)
	return &dto, nil
}

func (s *service) SetItemStatus(ctx context.Context, id uuid.UUID, status enums.ItemStatus) (*ItemDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid item status %q", status))
	}

	var updated *models.Item
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindItem(ctx, id)
		if err != nil {
			return err
		}
		previous := current.Status
		if previous == status {
			updated = current
			return nil
		}
		if err := repo.UpdateItemStatus(ctx, id, status); err != nil {
			return err
		}
		current.Status = status
		updated = current
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemStatusChanged,
			AggregateType: enums.AggregateItem,
			AggregateID:   id,
			Source:        &outbox.Source{Surface: "admin"},
			Data: payloads.ItemStatusChangedEvent{
				ItemID:         id,
				PreviousStatus: previous,
				Status:         status,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"item_id": id.String(), "status": status})
	s.logg.Info(logCtx, "catalog item status set")
	dto := ItemFromModel(*updated)
	return &dto, nil
}

// Snapshot reads the whole catalog into an immutable pricing view.
func (s *service) Snapshot(ctx context.Context) (*pricing.Snapshot, error) {
	items, err := s.repo.ListItems(ctx, nil)
	if err != nil {
		return nil, err
	}
	mods, err := s.repo.ListModifiers(ctx)
	if err != nil {
		return nil, err
	}
	return SnapshotFromModels(items, mods), nil
}

// SnapshotFromModels projects catalog rows into a pricing snapshot.
func SnapshotFromModels(items []models.Item, mods []models.Modifier) *pricing.Snapshot {
	pItems := make([]pricing.Item, 0, len(items))
	for _, item := range items {
		pItems = append(pItems, item.PricingItem())
	}
	pMods := make([]pricing.Modifier, 0, len(mods))
	for _, mod := range mods {
		pMods = append(pMods, mod.PricingModifier())
	}
	return pricing.NewSnapshot(pItems, pMods)
}

func validateItemInput(input CreateItemInput) (*models.Item, error) {
	details := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		details["name"] = "is required"
	}
	if input.BasePrice.IsNegative() {
		details["base_price"] = "must be at least 0"
	}
	if input.Stock < 0 {
		details["stock"] = "must be at least 0"
	}
	size := input.Size
	if size == "" {
		size = enums.DefaultItemSize
	}
	if !size.IsValid() {
		details["size"] = "is invalid"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return &models.Item{
		Name:      name,
		Kind:      strings.TrimSpace(input.Kind),
		Material:  strings.TrimSpace(input.Material),
		Size:      size,
		BasePrice: input.BasePrice,
		Stock:     input.Stock,
		Status:    enums.ItemStatusActive,
	}, nil
}

func validateModifierInput(input CreateModifierInput) (*models.Modifier, error) {
	details := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		details["name"] = "is required"
	}
	if !input.Kind.IsValid() {
		details["kind"] = "is invalid"
	}
	if input.Value.IsNegative() {
		details["value"] = "must be at least 0"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return &models.Modifier{
		Name:  name,
		Kind:  input.Kind,
		Value: pricing.NormalizeValue(input.Kind, input.Value),
	}, nil
}
