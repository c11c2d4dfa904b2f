package sales

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/internal/catalog"
	"github.com/muebleria/cotizador-backend/pkg/db/models"
	dbtypes "github.com/muebleria/cotizador-backend/pkg/db/types"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
	"github.com/muebleria/cotizador-backend/pkg/logger"
	"github.com/muebleria/cotizador-backend/pkg/metrics"
	"github.com/muebleria/cotizador-backend/pkg/outbox"
	"github.com/muebleria/cotizador-backend/pkg/outbox/payloads"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
	"github.com/muebleria/cotizador-backend/pkg/stock"
)

// SettledMessage is the confirmation returned with every committed sale.
const SettledMessage = "sale completed"

const moneyScale = 2

// Service is the authoritative side of checkout.
type Service interface {
	Settle(ctx context.Context, lines []pricing.Line) (*SettlementResult, error)
	Quote(ctx context.Context, lines []pricing.Line) (*pricing.Quotation, error)
	GetSale(ctx context.Context, id uuid.UUID) (*SaleDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repository *Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Metrics    *metrics.SettlementMetrics
	Logger     *logger.Logger
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repository,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// Settle commits the cart or nothing: stock moves for every item, or for none.
func (s *service) Settle(ctx context.Context, lines []pricing.Line) (*SettlementResult, error) {
	start := s.now()
	result, err := s.settle(ctx, lines)
	took := s.now().Sub(start)
	if err != nil {
		s.metrics.ObserveRejected(string(pkgerrors.CodeOf(err)), took)
		logCtx := s.logg.WithField(ctx, "lines", len(lines))
		if pkgerrors.IsCode(err, pkgerrors.CodeDependency) || pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
			s.logg.Error(logCtx, "sale settlement failed", err)
		} else {
			s.logg.Warn(s.logg.WithField(logCtx, "reason", err.Error()), "sale settlement rejected")
		}
		return nil, err
	}

	s.metrics.ObserveSettled(result.TotalPaid, took)
	logCtx := s.logg.WithSaleID(ctx, result.SaleID.String())
	s.logg.Info(s.logg.WithField(logCtx, "total_paid", result.TotalPaid.String()), "sale settled")
	return result, nil
}

func (s *service) settle(ctx context.Context, lines []pricing.Line) (*SettlementResult, error) {
	if err := validateCart(lines); err != nil {
		return nil, err
	}

	totals := stock.Aggregate(lines)
	itemIDs := sortedIDs(totals)

	var result *SettlementResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		snap, byID, err := loadSnapshot(ctx, repo, itemIDs, lines)
		if err != nil {
			return err
		}

		for _, id := range itemIDs {
			item, ok := byID[id]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
					WithDetails(map[string]any{"item_id": id})
			}
			if !item.Status.Offerable() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s is not available for sale", item.Name)).
					WithDetails(map[string]any{"item_id": id, "status": item.Status})
			}
		}

		for _, id := range itemIDs {
			qty, item := totals[id], byID[id]
			insufficient := &stock.InsufficientStockError{
				ItemID:    id,
				ItemName:  item.Name,
				Requested: qty,
				Available: item.Stock,
			}
			if qty > item.Stock {
				return insufficient.Typed()
			}
			moved, err := repo.DecrementStock(ctx, id, qty)
			if err != nil {
				return err
			}
			if !moved {
				return insufficient.Typed()
			}
		}

		quote, err := pricing.Quote(lines, snap)
		if err != nil {
			return err
		}

		sale := buildSale(quote, byID)
		if err := repo.CreateSale(ctx, sale); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleSettled,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Source:        &outbox.Source{Surface: "storefront"},
			Data:          settledEvent(sale),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit sale_settled")
		}

		result = &SettlementResult{
			Message:   SettledMessage,
			TotalPaid: sale.TotalPaid,
			SaleID:    sale.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Quote prices lines against the current rows without touching stock.
func (s *service) Quote(ctx context.Context, lines []pricing.Line) (*pricing.Quotation, error) {
	if err := stock.ValidateLines(lines); err != nil {
		return nil, err
	}
	itemIDs := sortedIDs(stock.Aggregate(lines))
	snap, _, err := loadSnapshot(ctx, s.repo, itemIDs, lines)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.Quote(lines, snap)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *service) GetSale(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	sale, err := s.repo.FindSale(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := SaleFromModel(*sale)
	return &dto, nil
}

func validateCart(lines []pricing.Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return stock.ValidateLines(lines)
}

// loadSnapshot reads only the rows the cart references.
func loadSnapshot(ctx context.Context, repo *Repository, itemIDs []uuid.UUID, lines []pricing.Line) (*pricing.Snapshot, map[uuid.UUID]models.Item, error) {
	items, err := repo.ItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, nil, err
	}
	var modIDs []uuid.UUID
	for _, line := range lines {
		modIDs = append(modIDs, line.ModifierIDs...)
	}
	mods, err := repo.ModifiersByIDs(ctx, pricing.UniqueIDs(modIDs))
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[uuid.UUID]models.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return catalog.SnapshotFromModels(items, mods), byID, nil
}

// buildSale rounds money to cents, the precision the sale columns keep, so the
// settlement response matches what a later read returns.
func buildSale(quote pricing.Quotation, byID map[uuid.UUID]models.Item) *models.Sale {
	sale := &models.Sale{
		ID:        uuid.New(),
		TotalPaid: decimal.Zero,
		LineCount: len(quote.Lines),
		Lines:     make([]models.SaleLine, 0, len(quote.Lines)),
	}
	for idx, lq := range quote.Lines {
		lineTotal := lq.LineTotal.Round(moneyScale)
		sale.TotalPaid = sale.TotalPaid.Add(lineTotal)
		sale.Lines = append(sale.Lines, models.SaleLine{
			Position:    idx,
			ItemID:      lq.Line.ItemID,
			ItemName:    byID[lq.Line.ItemID].Name,
			Quantity:    lq.Line.Quantity,
			ModifierIDs: dbtypes.UUIDArray(appliedModifiers(lq)),
			UnitPrice:   lq.UnitPrice.Round(moneyScale),
			LineTotal:   lineTotal,
		})
	}
	return sale
}

// appliedModifiers drops duplicates and references that did not resolve.
func appliedModifiers(lq pricing.LineQuote) []uuid.UUID {
	skipped := make(map[uuid.UUID]struct{}, len(lq.SkippedModifierIDs))
	for _, id := range lq.SkippedModifierIDs {
		skipped[id] = struct{}{}
	}
	out := []uuid.UUID{}
	for _, id := range pricing.UniqueIDs(lq.Line.ModifierIDs) {
		if _, ok := skipped[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

func settledEvent(sale *models.Sale) payloads.SaleSettledEvent {
	lines := make([]payloads.SaleSettledLine, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lines = append(lines, payloads.SaleSettledLine{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal,
		})
	}
	return payloads.SaleSettledEvent{
		SaleID:    sale.ID,
		TotalPaid: sale.TotalPaid,
		Lines:     lines,
	}
}

// sortedIDs gives a stable lock order so concurrent settlements cannot deadlock.
func sortedIDs(totals map[uuid.UUID]int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}
