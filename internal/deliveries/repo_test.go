package deliveries

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
)

func setupDeliveryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	deliveriesDDL := `
CREATE TABLE IF NOT EXISTS deliveries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  vendor_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  shipment_id TEXT NOT NULL,
  tracking_number TEXT NOT NULL,
  tracking_url TEXT,
  pickup_address TEXT,
  delivery_address TEXT,
  package TEXT,
  delivery_type TEXT NOT NULL DEFAULT 'standard',
  status TEXT NOT NULL DEFAULT 'pickup_scheduled',
  cost_kobo INTEGER NOT NULL DEFAULT 0,
  estimated_delivery DATETIME,
  actual_delivery DATETIME,
  proof_image_url TEXT,
  recipient_name TEXT,
  signature_url TEXT,
  notes TEXT,
  last_status_update DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	historyDDL := `
CREATE TABLE IF NOT EXISTS delivery_status_history (
  id TEXT PRIMARY KEY,
  delivery_id TEXT NOT NULL,
  status TEXT NOT NULL,
  location TEXT,
  notes TEXT,
  updated_by TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(deliveriesDDL).Error)
	require.NoError(t, db.Exec(historyDDL).Error)
	return db
}

func seedDelivery(t *testing.T, db *gorm.DB) *models.Delivery {
	t.Helper()
	delivery := &models.Delivery{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		VendorID:       uuid.New(),
		BuyerID:        uuid.New(),
		ShipmentID:     "SHP-" + uuid.NewString()[:8],
		TrackingNumber: "GIGL-" + uuid.NewString()[:8],
		Status:         enums.DeliveryStatusPickupScheduled,
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

func TestOneDeliveryPerOrder(t *testing.T) {
	db := setupDeliveryTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	existing := seedDelivery(t, db)

	_, err := repo.CreateDelivery(ctx, &models.Delivery{
		ID:             uuid.New(),
		OrderID:        existing.OrderID,
		VendorID:       existing.VendorID,
		BuyerID:        existing.BuyerID,
		ShipmentID:     "SHP-DUP",
		TrackingNumber: "GIGL-DUP",
	})
	require.Error(t, err)
}

func TestFindByShipment(t *testing.T) {
	db := setupDeliveryTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	existing := seedDelivery(t, db)

	found, err := repo.FindByShipment(ctx, existing.ShipmentID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, found.ID)

	_, err = repo.FindByShipment(ctx, "SHP-MISSING")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestHistoryListsOldestFirst(t *testing.T) {
	db := setupDeliveryTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	existing := seedDelivery(t, db)

	base := time.Now().Add(-time.Hour)
	statuses := []enums.DeliveryStatus{
		enums.DeliveryStatusPickupScheduled,
		enums.DeliveryStatusInTransit,
		enums.DeliveryStatusDelivered,
	}
	for i, status := range statuses {
		entry := &models.DeliveryStatusHistory{
			ID:         uuid.New(),
			DeliveryID: existing.ID,
			Status:     status,
			UpdatedBy:  enums.DeliveryUpdateSourceCourierWebhook,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(entry).Error)
	}

	entries, err := repo.ListHistory(ctx, existing.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, enums.DeliveryStatusPickupScheduled, entries[0].Status)
	assert.Equal(t, enums.DeliveryStatusDelivered, entries[2].Status)
}
