package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

func setupOrderTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ordersDDL := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  delivery_address TEXT,
  delivery_type TEXT NOT NULL DEFAULT 'standard',
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal_kobo INTEGER NOT NULL,
  shipping_fee_kobo INTEGER NOT NULL DEFAULT 0,
  total_kobo INTEGER NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT,
  payment_ref TEXT,
  tracking_number TEXT,
  notes TEXT,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	itemsDDL := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  title TEXT NOT NULL,
  image_url TEXT,
  quantity INTEGER NOT NULL,
  unit_price_kobo INTEGER NOT NULL,
  total_kobo INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ordersDDL).Error)
	require.NoError(t, db.Exec(itemsDDL).Error)
	return db
}

func buildOrder(buyerID, vendorID uuid.UUID, seq int) *models.Order {
	return &models.Order{
		ID:           uuid.New(),
		OrderNumber:  fmt.Sprintf("OJA-TEST%04d", seq),
		BuyerID:      buyerID,
		VendorID:     vendorID,
		Status:       enums.OrderStatusPending,
		SubtotalKobo: 400_000,
		TotalKobo:    430_000,
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: uuid.New(), Title: "Aso oke cap", Quantity: 1, UnitPriceKobo: 400_000, TotalKobo: 400_000},
		},
	}
}

func TestCreateOrderPersistsItems(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.CreateOrder(ctx, buildOrder(uuid.New(), uuid.New(), 1))
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, "Aso oke cap", reloaded.Items[0].Title)
	assert.Equal(t, created.ID, reloaded.Items[0].OrderID)
}

func TestOrderNumberUnique(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := buildOrder(uuid.New(), uuid.New(), 7)
	_, err := repo.CreateOrder(ctx, first)
	require.NoError(t, err)

	dup := buildOrder(uuid.New(), uuid.New(), 7)
	_, err = repo.CreateOrder(ctx, dup)
	require.Error(t, err)
}

func TestFindByNumber(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.CreateOrder(ctx, buildOrder(uuid.New(), uuid.New(), 9))
	require.NoError(t, err)

	found, err := repo.FindByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.FindByNumber(ctx, "OJA-MISSING")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListFiltersAndPaginatesNewestFirst(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	buyerID := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		order := buildOrder(buyerID, uuid.New(), 100+i)
		order.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(order).Error)
	}
	// Another buyer's order must not leak into the page.
	other := buildOrder(uuid.New(), uuid.New(), 200)
	require.NoError(t, db.Create(other).Error)

	page, err := repo.List(ctx, ListFilter{BuyerID: &buyerID}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	// Limit plus one buffer row.
	require.Len(t, page, 3)
	assert.Equal(t, "OJA-TEST0103", page[0].OrderNumber)
	assert.Equal(t, "OJA-TEST0102", page[1].OrderNumber)
	for _, order := range page {
		assert.Equal(t, buyerID, order.BuyerID)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	pending := buildOrder(uuid.New(), vendorID, 300)
	require.NoError(t, db.Create(pending).Error)

	delivered := buildOrder(uuid.New(), vendorID, 301)
	delivered.Status = enums.OrderStatusDelivered
	require.NoError(t, db.Create(delivered).Error)

	status := enums.OrderStatusDelivered
	page, err := repo.List(ctx, ListFilter{VendorID: &vendorID, Status: &status}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, delivered.ID, page[0].ID)
}
