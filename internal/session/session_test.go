package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muebleria/cotizador-backend/internal/apiclient"
	"github.com/muebleria/cotizador-backend/internal/catalog"
	"github.com/muebleria/cotizador-backend/internal/sales"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
	"github.com/muebleria/cotizador-backend/pkg/logger"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
	"github.com/muebleria/cotizador-backend/pkg/stock"
)

type fakeBackend struct {
	mu        sync.Mutex
	items     []catalog.ItemDTO
	mods      []catalog.ModifierDTO
	listErr   error
	settleErr error
	settled   [][]pricing.Line
	keys      []string
	release   chan struct{}
	entered   chan struct{}
}

func (f *fakeBackend) ListItems(context.Context) ([]catalog.ItemDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]catalog.ItemDTO(nil), f.items...), nil
}

func (f *fakeBackend) ListModifiers(context.Context) ([]catalog.ModifierDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.ModifierDTO(nil), f.mods...), nil
}

func (f *fakeBackend) CreateItem(_ context.Context, req apiclient.CreateItemRequest) (*catalog.ItemDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := catalog.ItemDTO{ID: uuid.New(), Name: req.Name, BasePrice: req.BasePrice, Stock: req.Stock, Status: enums.ItemStatusActive}
	f.items = append(f.items, item)
	return &item, nil
}

func (f *fakeBackend) CreateModifier(_ context.Context, req apiclient.CreateModifierRequest) (*catalog.ModifierDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mod := catalog.ModifierDTO{ID: uuid.New(), Name: req.Name, Kind: req.Kind, Value: req.Value}
	f.mods = append(f.mods, mod)
	return &mod, nil
}

func (f *fakeBackend) SetItemStatus(_ context.Context, id uuid.UUID, status enums.ItemStatus) (*catalog.ItemDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Status = status
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, &apiclient.APIError{Status: 404, Code: "NOT_FOUND", Message: "item not found"}
}

func (f *fakeBackend) Settle(ctx context.Context, lines []pricing.Line, key string) (*sales.SettlementResult, error) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled = append(f.settled, lines)
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	return &sales.SettlementResult{Message: sales.SettledMessage, TotalPaid: decimal.NewFromInt(11500), SaleID: uuid.New()}, nil
}

type fixture struct {
	backend *fakeBackend
	sess    *Session
	table   catalog.ItemDTO
	retired catalog.ItemDTO
	varnish catalog.ModifierDTO
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table := catalog.ItemDTO{ID: uuid.New(), Name: "Table", BasePrice: decimal.NewFromInt(10000), Stock: 1, Status: enums.ItemStatusActive}
	retired := catalog.ItemDTO{ID: uuid.New(), Name: "Old chair", BasePrice: decimal.NewFromInt(1000), Stock: 9, Status: enums.ItemStatusInactive}
	varnish := catalog.ModifierDTO{ID: uuid.New(), Name: "Varnish", Kind: enums.ModifierKindPercentage, Value: decimal.RequireFromString("0.15")}
	backend := &fakeBackend{items: []catalog.ItemDTO{table, retired}, mods: []catalog.ModifierDTO{varnish}}

	logs := &bytes.Buffer{}
	sess, err := New(backend, Options{SettleTimeout: time.Second, Logger: logger.New(logger.Options{ServiceName: "session-test", Output: logs})})
	require.NoError(t, err)
	require.NoError(t, sess.Reload(context.Background()))
	return &fixture{backend: backend, sess: sess, table: table, retired: retired, varnish: varnish, logs: logs}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestAddRespectsStock(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sess.Add(f.table.ID, 1, f.varnish.ID))
	err := f.sess.Add(f.table.ID, 1)
	require.Error(t, err)

	var insufficient *stock.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.InCart)
	assert.Equal(t, 1, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)
	assert.Len(t, f.sess.Lines(), 1, "failed add leaves the cart untouched")
}

func TestAddRejectsInvalidQuantityAndInactiveItems(t *testing.T) {
	f := newFixture(t)

	err := f.sess.Add(f.table.ID, 0)
	assert.ErrorIs(t, err, stock.ErrInvalidQuantity)

	err = f.sess.Add(f.retired.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, f.sess.Lines())
}

func TestQuoteRecomputesFromCart(t *testing.T) {
	f := newFixture(t)

	q, err := f.sess.Quote()
	require.NoError(t, err)
	assert.True(t, q.Total.IsZero())

	require.NoError(t, f.sess.Add(f.table.ID, 1, f.varnish.ID, f.varnish.ID))
	q, err = f.sess.Quote()
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(decimal.NewFromInt(11500)), "got %s", q.Total)
}

func TestOfferableItemsHidesInactive(t *testing.T) {
	f := newFixture(t)
	offerable := f.sess.OfferableItems()
	require.Len(t, offerable, 1)
	assert.Equal(t, f.table.ID, offerable[0].ID)
	assert.Len(t, f.sess.Items(), 2)
	assert.Len(t, f.sess.Modifiers(), 1)
}

func TestCheckoutSuccessClearsCartAndReloads(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Add(f.table.ID, 1, f.varnish.ID))

	f.backend.mu.Lock()
	f.backend.items[0].Stock = 0
	f.backend.mu.Unlock()

	res, err := f.sess.Checkout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sales.SettledMessage, res.Message)
	assert.Empty(t, f.sess.Lines())

	require.Len(t, f.backend.settled, 1)
	assert.Equal(t, []uuid.UUID{f.varnish.ID}, f.backend.settled[0][0].ModifierIDs)
	assert.NotEmpty(t, f.backend.keys[0])

	item, ok := f.sess.Snapshot().Item(f.table.ID)
	require.True(t, ok)
	assert.Equal(t, 0, item.Stock, "snapshot reloaded after settlement")
}

func TestCheckoutFailurePreservesCart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Add(f.table.ID, 1))
	before := f.sess.Lines()

	f.backend.settleErr = &apiclient.APIError{Status: 409, Code: "CONFLICT", Message: "insufficient stock for Table"}
	_, err := f.sess.Checkout(context.Background())

	var rejected *SettlementRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "insufficient stock for Table", rejected.Reason)
	assert.Equal(t, "CONFLICT", rejected.Code)
	assert.Equal(t, before, f.sess.Lines())
}

func TestCheckoutTransportFailureUsesDefaultReason(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Add(f.table.ID, 1))

	f.backend.settleErr = errors.New("connection refused")
	_, err := f.sess.Checkout(context.Background())

	var rejected *SettlementRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, apiclient.DefaultRejectReason, rejected.Reason)
	assert.Len(t, f.sess.Lines(), 1)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.sess.Checkout(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutBlocksConcurrentSettlement(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Add(f.table.ID, 1))

	f.backend.entered = make(chan struct{}, 1)
	f.backend.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.sess.Checkout(context.Background())
		done <- err
	}()
	<-f.backend.entered

	_, err := f.sess.Checkout(context.Background())
	assert.ErrorIs(t, err, ErrSettlementInFlight)
	assert.ErrorIs(t, f.sess.Add(f.table.ID, 1), ErrSettlementInFlight)
	assert.ErrorIs(t, f.sess.Clear(), ErrSettlementInFlight)

	close(f.backend.release)
	require.NoError(t, <-done)
	assert.Len(t, f.backend.settled, 1)
}

func TestCheckoutTimeoutPreservesCart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Add(f.table.ID, 1))
	f.sess.timeout = 10 * time.Millisecond
	f.backend.release = make(chan struct{})

	_, err := f.sess.Checkout(context.Background())
	var rejected *SettlementRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, f.sess.Lines(), 1)
}

func TestCheckoutRetryReusesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Add(f.table.ID, 1))
	f.sess.timeout = 10 * time.Millisecond
	f.backend.release = make(chan struct{})

	_, err := f.sess.Checkout(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	f.backend.release = nil
	_, err = f.sess.Checkout(context.Background())
	require.NoError(t, err)

	require.Len(t, f.backend.keys, 2)
	assert.Equal(t, f.backend.keys[0], f.backend.keys[1])
	assert.Empty(t, f.sess.Lines())

	require.NoError(t, f.sess.Add(f.table.ID, 1))
	_, err = f.sess.Checkout(context.Background())
	require.NoError(t, err)
	require.Len(t, f.backend.keys, 3)
	assert.NotEqual(t, f.backend.keys[1], f.backend.keys[2], "a settled cart must not lend its key to the next one")
}

func TestCheckoutKeyResetsAfterFinalRejectionOrCartChange(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Add(f.table.ID, 1))

	f.backend.settleErr = &apiclient.APIError{Status: 409, Code: "CONFLICT", Message: "insufficient stock"}
	_, err := f.sess.Checkout(context.Background())
	require.Error(t, err)
	_, err = f.sess.Checkout(context.Background())
	require.Error(t, err)
	require.Len(t, f.backend.keys, 2)
	assert.NotEqual(t, f.backend.keys[0], f.backend.keys[1])

	f.backend.settleErr = &apiclient.APIError{Status: 503, Code: "DEPENDENCY_ERROR", Message: "try later"}
	_, err = f.sess.Checkout(context.Background())
	require.Error(t, err)
	_, err = f.sess.Checkout(context.Background())
	require.Error(t, err)
	require.Len(t, f.backend.keys, 4)
	assert.Equal(t, f.backend.keys[2], f.backend.keys[3])

	f.backend.settleErr = nil
	require.NoError(t, f.sess.Clear())
	require.NoError(t, f.sess.Add(f.table.ID, 1))
	_, err = f.sess.Checkout(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, f.backend.keys[3], f.backend.keys[4])
}

func TestReloadFailureKeepsPreviousSnapshot(t *testing.T) {
	f := newFixture(t)
	before := f.sess.Snapshot()

	f.backend.listErr = errors.New("catalog offline")
	err := f.sess.Reload(context.Background())
	assert.ErrorIs(t, err, ErrCatalogLoad)
	assert.Same(t, before, f.sess.Snapshot())
	assert.Contains(t, f.logs.String(), "catalog reload failed")
}

func TestAdminPassThroughsReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.sess.CreateItem(ctx, apiclient.CreateItemRequest{Name: "Desk", BasePrice: decimal.NewFromInt(5000), Stock: 2})
	require.NoError(t, err)
	_, ok := f.sess.Snapshot().Item(item.ID)
	assert.True(t, ok)

	_, err = f.sess.SetItemStatus(ctx, f.table.ID, enums.ItemStatusInactive)
	require.NoError(t, err)
	got, ok := f.sess.Snapshot().Item(f.table.ID)
	require.True(t, ok)
	assert.Equal(t, enums.ItemStatusInactive, got.Status)
	assert.Len(t, f.sess.OfferableItems(), 1, "only the new desk remains offerable")

	mod, err := f.sess.CreateModifier(ctx, apiclient.CreateModifierRequest{Name: "Glass", Kind: enums.ModifierKindFixedAdd, Value: decimal.NewFromInt(500)})
	require.NoError(t, err)
	_, ok = f.sess.Snapshot().Modifier(mod.ID)
	assert.True(t, ok)
}
