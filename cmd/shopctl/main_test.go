package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/api/routes"
	"github.com/muebleria/cotizador-backend/internal/catalog"
	"github.com/muebleria/cotizador-backend/internal/sales"
	"github.com/muebleria/cotizador-backend/pkg/config"
	"github.com/muebleria/cotizador-backend/pkg/db"
	"github.com/muebleria/cotizador-backend/pkg/db/models"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	"github.com/muebleria/cotizador-backend/pkg/logger"
	"github.com/muebleria/cotizador-backend/pkg/metrics"
	"github.com/muebleria/cotizador-backend/pkg/migrate"
	"github.com/muebleria/cotizador-backend/pkg/outbox"
)

func newBackend(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	dsn := "file:shopctl_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(migrate.Models()...))

	logg := logger.New(logger.Options{ServiceName: "shopctl-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	tx := db.NewFromGorm(conn)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), tx, emitter, logg)
	require.NoError(t, err)
	salesSvc, err := sales.NewService(sales.ServiceParams{
		Repository: sales.NewRepository(conn),
		Tx:         tx,
		Outbox:     emitter,
		Logger:     logg,
	})
	require.NoError(t, err)

	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(routes.NewRouter(cfg, logg, tx, nil, reg, metrics.NewHTTPMetrics(reg), catalogSvc, salesSvc))
	t.Cleanup(srv.Close)
	return srv, conn
}

func TestRunCheckoutAgainstAPI(t *testing.T) {
	srv, conn := newBackend(t)
	desk := models.Item{Name: "Desk", BasePrice: decimal.NewFromInt(4000), Stock: 2, Status: enums.ItemStatusActive, Size: enums.ItemSizeLarge}
	require.NoError(t, conn.Create(&desk).Error)

	logg := logger.New(logger.Options{ServiceName: "shopctl-test", Output: io.Discard})
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, &out, logg, srv.URL, 5*time.Second, []string{"items"}))
	assert.Contains(t, out.String(), "Desk")

	out.Reset()
	require.NoError(t, run(ctx, &out, logg, srv.URL, 5*time.Second, []string{"checkout", desk.ID.String() + ":2"}))
	assert.Contains(t, out.String(), "sale completed: paid 8000.00")

	var stored models.Item
	require.NoError(t, conn.First(&stored, "id = ?", desk.ID).Error)
	assert.Equal(t, 0, stored.Stock)

	// The refreshed snapshot shows zero stock, so the client refuses locally.
	err := run(ctx, &out, logg, srv.URL, 5*time.Second, []string{"quote", desk.ID.String() + ":1"})
	require.Error(t, err)
}

func TestRunAdminCommands(t *testing.T) {
	srv, _ := newBackend(t)
	logg := logger.New(logger.Options{ServiceName: "shopctl-test", Output: io.Discard})
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, &out, logg, srv.URL, 5*time.Second, []string{
		"add-item", "-name", "Bench", "-price", "1200", "-stock", "3", "-size", "MEDIUM",
	}))
	assert.Contains(t, out.String(), "created item Bench")

	out.Reset()
	require.NoError(t, run(ctx, &out, logg, srv.URL, 5*time.Second, []string{
		"add-modifier", "-name", "Varnish", "-kind", "PERCENTAGE", "-value", "15",
	}))
	assert.Contains(t, out.String(), "created modifier Varnish")

	out.Reset()
	require.NoError(t, run(ctx, &out, logg, srv.URL, 5*time.Second, []string{"modifiers"}))
	assert.Contains(t, out.String(), "15%")
}

func TestRunRejectsBadEnumFlags(t *testing.T) {
	srv, _ := newBackend(t)
	logg := logger.New(logger.Options{ServiceName: "shopctl-test", Output: io.Discard})
	ctx := context.Background()

	err := run(ctx, io.Discard, logg, srv.URL, time.Second, []string{"add-item", "-name", "Bench", "-price", "10", "-size", "HUGE"})
	assert.ErrorContains(t, err, "invalid item size")

	err = run(ctx, io.Discard, logg, srv.URL, time.Second, []string{"add-modifier", "-name", "Gift", "-kind", "discount", "-value", "5"})
	assert.ErrorContains(t, err, "DISCOUNT")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	srv, _ := newBackend(t)
	logg := logger.New(logger.Options{ServiceName: "shopctl-test", Output: io.Discard})
	err := run(context.Background(), io.Discard, logg, srv.URL, time.Second, []string{"explode"})
	assert.ErrorContains(t, err, "unknown command")
}
