package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/muebleria/cotizador-backend/internal/apiclient"
	"github.com/muebleria/cotizador-backend/internal/catalog"
	"github.com/muebleria/cotizador-backend/internal/sales"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
	"github.com/muebleria/cotizador-backend/pkg/logger"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
	"github.com/muebleria/cotizador-backend/pkg/stock"
)

const defaultSettleTimeout = 15 * time.Second

var (
	// ErrSettlementInFlight is returned while a checkout is awaiting its outcome.
	ErrSettlementInFlight = errors.New("settlement already in flight")
	// ErrCatalogLoad wraps any failure to refresh the catalog snapshot.
	ErrCatalogLoad = errors.New("catalog load failed")
	ErrEmptyCart   = errors.New("cart is empty")
)

// SettlementRejectedError reports a checkout the server (or transport) refused.
// The cart is left untouched.
type SettlementRejectedError struct {
	Reason string
	Code   string
	Err    error
}

func (e *SettlementRejectedError) Error() string {
	return "settlement rejected: " + e.Reason
}

func (e *SettlementRejectedError) Unwrap() error {
	return e.Err
}

// Backend is the remote catalog and settlement surface.
type Backend interface {
	ListItems(ctx context.Context) ([]catalog.ItemDTO, error)
	ListModifiers(ctx context.Context) ([]catalog.ModifierDTO, error)
	CreateItem(ctx context.Context, req apiclient.CreateItemRequest) (*catalog.ItemDTO, error)
	CreateModifier(ctx context.Context, req apiclient.CreateModifierRequest) (*catalog.ModifierDTO, error)
	SetItemStatus(ctx context.Context, id uuid.UUID, status enums.ItemStatus) (*catalog.ItemDTO, error)
	Settle(ctx context.Context, lines []pricing.Line, idempotencyKey string) (*sales.SettlementResult, error)
}

type Options struct {
	// SettleTimeout bounds a single checkout round trip.
	SettleTimeout time.Duration
	Logger        *logger.Logger
}

// Session is one storefront/admin view: a catalog snapshot plus an ordered cart.
type Session struct {
	backend Backend
	timeout time.Duration
	logg    *logger.Logger

	mu       sync.Mutex
	snap     *pricing.Snapshot
	cart     []pricing.Line
	settling bool
	// pendingKey is the idempotency key of an unresolved checkout of the
	// current cart. Retries reuse it so a settlement that committed after a
	// timeout is replayed rather than repeated.
	pendingKey string
}

func New(backend Backend, opts Options) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("session backend required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := opts.SettleTimeout
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	return &Session{
		backend: backend,
		timeout: timeout,
		logg:    opts.Logger,
		snap:    pricing.EmptySnapshot(),
	}, nil
}

// Reload replaces the snapshot wholesale. On failure the previous snapshot stays.
func (s *Session) Reload(ctx context.Context) error {
	var (
		items []catalog.ItemDTO
		mods  []catalog.ModifierDTO
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.backend.ListItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		mods, err = s.backend.ListModifiers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logg.Error(ctx, "catalog reload failed, keeping previous snapshot", err)
		return fmt.Errorf("%w: %w", ErrCatalogLoad, err)
	}

	snap := snapshotFromDTOs(items, mods)
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{"items": len(items), "modifiers": len(mods)}), "catalog snapshot loaded")
	return nil
}

// Snapshot returns the current immutable catalog view.
func (s *Session) Snapshot() *pricing.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// OfferableItems lists what the storefront may sell.
func (s *Session) OfferableItems() []pricing.Item {
	return s.Snapshot().OfferableItems()
}

// Items lists every item, inactive ones included.
func (s *Session) Items() []pricing.Item {
	return s.Snapshot().Items()
}

func (s *Session) Modifiers() []pricing.Modifier {
	return s.Snapshot().Modifiers()
}

// Add appends a line after checking it against the snapshot's stock.
func (s *Session) Add(itemID uuid.UUID, quantity int, modifierIDs ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settling {
		return ErrSettlementInFlight
	}
	if quantity <= 0 {
		return stock.InvalidQuantity(quantity)
	}
	if item, ok := s.snap.Item(itemID); ok && !item.Status.Offerable() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s is not available for sale", item.Name)).
			WithDetails(map[string]any{"item_id": itemID, "status": item.Status})
	}
	if err := stock.CheckAdd(s.cart, itemID, quantity, s.snap); err != nil {
		return err
	}

	s.cart = append(s.cart, pricing.Line{
		ItemID:      itemID,
		Quantity:    quantity,
		ModifierIDs: append([]uuid.UUID(nil), modifierIDs...),
	})
	s.pendingKey = ""
	return nil
}

// Lines returns a copy of the cart in insertion order.
func (s *Session) Lines() []pricing.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.cart)
}

func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settling {
		return ErrSettlementInFlight
	}
	s.cart = nil
	s.pendingKey = ""
	return nil
}

// Quote prices the cart against the current snapshot. It is recomputed on every call.
func (s *Session) Quote() (pricing.Quotation, error) {
	s.mu.Lock()
	lines := copyLines(s.cart)
	snap := s.snap
	s.mu.Unlock()
	return pricing.Quote(lines, snap)
}

// Checkout submits the cart. Only one settlement may be in flight; the cart is
// cleared on success and preserved verbatim on any failure.
func (s *Session) Checkout(ctx context.Context) (*sales.SettlementResult, error) {
	s.mu.Lock()
	if s.settling {
		s.mu.Unlock()
		return nil, ErrSettlementInFlight
	}
	if len(s.cart) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}
	lines := copyLines(s.cart)
	if s.pendingKey == "" {
		s.pendingKey = uuid.NewString()
	}
	key := s.pendingKey
	s.settling = true
	s.mu.Unlock()

	settleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.backend.Settle(settleCtx, lines, key)
	cancel()

	s.mu.Lock()
	s.settling = false
	switch {
	case err == nil:
		s.cart = nil
		s.pendingKey = ""
	case isFinalRejection(err):
		s.pendingKey = ""
	}
	s.mu.Unlock()

	if err != nil {
		rejected := rejection(err)
		logCtx := s.logg.WithFields(ctx, map[string]any{"reason": rejected.Reason, "code": rejected.Code})
		s.logg.Warn(logCtx, "checkout rejected")
		return nil, rejected
	}

	s.logg.Info(s.logg.WithSaleID(ctx, res.SaleID.String()), "checkout settled")
	if reloadErr := s.Reload(ctx); reloadErr != nil {
		s.logg.Warn(ctx, "catalog reload after checkout failed")
	}
	return res, nil
}

func (s *Session) CreateItem(ctx context.Context, req apiclient.CreateItemRequest) (*catalog.ItemDTO, error) {
	item, err := s.backend.CreateItem(ctx, req)
	if err != nil {
		return nil, err
	}
	return item, s.Reload(ctx)
}

// CreateModifier takes percent points for PERCENTAGE modifiers.
func (s *Session) CreateModifier(ctx context.Context, req apiclient.CreateModifierRequest) (*catalog.ModifierDTO, error) {
	mod, err := s.backend.CreateModifier(ctx, req)
	if err != nil {
		return nil, err
	}
	return mod, s.Reload(ctx)
}

func (s *Session) SetItemStatus(ctx context.Context, id uuid.UUID, status enums.ItemStatus) (*catalog.ItemDTO, error) {
	item, err := s.backend.SetItemStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	return item, s.Reload(ctx)
}

// isFinalRejection reports a 4xx answer that the server will give again for
// the same cart. Rate limiting and a key still in flight are worth retrying
// under the same key; transport failures and 5xx leave the outcome unknown.
func isFinalRejection(err error) bool {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusTooManyRequests || apiErr.Code == string(pkgerrors.CodeIdempotencyInFlight) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500
}

func rejection(err error) *SettlementRejectedError {
	out := &SettlementRejectedError{Reason: apiclient.DefaultRejectReason, Err: err}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.Code
		if apiErr.Message != "" {
			out.Reason = apiErr.Message
		}
	}
	return out
}

func snapshotFromDTOs(items []catalog.ItemDTO, mods []catalog.ModifierDTO) *pricing.Snapshot {
	pItems := make([]pricing.Item, 0, len(items))
	for _, item := range items {
		pItems = append(pItems, pricing.Item{
			ID:        item.ID,
			Name:      item.Name,
			BasePrice: item.BasePrice,
			Stock:     item.Stock,
			Status:    item.Status,
		})
	}
	pMods := make([]pricing.Modifier, 0, len(mods))
	for _, mod := range mods {
		pMods = append(pMods, pricing.Modifier{
			ID:    mod.ID,
			Name:  mod.Name,
			Kind:  mod.Kind,
			Value: mod.Value,
		})
	}
	return pricing.NewSnapshot(pItems, pMods)
}

func copyLines(lines []pricing.Line) []pricing.Line {
	if len(lines) == 0 {
		return nil
	}
	out := make([]pricing.Line, len(lines))
	for i, line := range lines {
		out[i] = pricing.Line{
			ItemID:      line.ItemID,
			Quantity:    line.Quantity,
			ModifierIDs: append([]uuid.UUID(nil), line.ModifierIDs...),
		}
	}
	return out
}
