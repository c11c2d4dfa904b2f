package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/pkg/db/models"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	"github.com/muebleria/cotizador-backend/pkg/logger"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:outbox_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func TestEmitPersistsEnvelope(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	saleID := uuid.New()

	ctx := logger.ContextWithRequestID(context.Background(), "req-42")
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventSaleSettled,
			AggregateType: enums.AggregateSale,
			AggregateID:   saleID,
			Source:        &Source{Surface: "storefront"},
			Data:          map[string]any{"sale_id": saleID},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, saleID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Source)
	assert.Equal(t, "storefront", envelope.Source.Surface)
	assert.Equal(t, "req-42", envelope.Source.RequestID)

	pending, err := repo.CountPending()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := newOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventItemCreated,
			AggregateType: enums.AggregateItem,
			AggregateID:   uuid.New(),
			Data:          map[string]any{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitValidatesInput(t *testing.T) {
	conn := newOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "bogus", AggregateType: enums.AggregateSale}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventSaleSettled, AggregateType: "bogus"}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventSaleSettled, AggregateType: enums.AggregateSale}))
}

func TestMarkPublishedAndFailed(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	first := models.OutboxEvent{EventType: enums.EventItemCreated, AggregateType: enums.AggregateItem, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventItemCreated, AggregateType: enums.AggregateItem, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, conn.Create(&first).Error)
	require.NoError(t, conn.Create(&second).Error)

	require.NoError(t, repo.MarkPublishedTx(conn, first.ID))
	require.NoError(t, repo.MarkFailedTx(conn, second.ID, errors.New("pubsub down")))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "pubsub down", *rows[0].LastError)

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, rows, "rows at max attempts are skipped")
}

func TestMarkTerminalParksRow(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	event := models.OutboxEvent{EventType: enums.EventSaleSettled, AggregateType: enums.AggregateSale, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, conn.Create(&event).Error)

	require.NoError(t, repo.MarkTerminalTx(conn, event.ID, errors.New("bad payload"), 10))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	pending, err := repo.CountPending()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}
