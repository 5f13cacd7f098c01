package disputes

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
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

func setupDisputeTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS disputes (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  escrow_id TEXT,
  filed_by TEXT NOT NULL,
  filed_by_type TEXT NOT NULL,
  type TEXT NOT NULL,
  description TEXT NOT NULL,
  evidence_urls TEXT,
  status TEXT NOT NULL DEFAULT 'open',
  prior_order_status TEXT NOT NULL,
  outcome TEXT,
  resolution TEXT,
  resolved_by TEXT,
  resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedDispute(t *testing.T, db *gorm.DB, filedBy uuid.UUID, status enums.DisputeStatus, createdAt time.Time) *models.Dispute {
	t.Helper()
	dispute := &models.Dispute{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		FiledBy:          filedBy,
		FiledByType:      enums.DisputeFilerBuyer,
		Type:             enums.DisputeTypeNonDelivery,
		Description:      "order never arrived",
		Status:           status,
		PriorOrderStatus: enums.OrderStatusShipped,
		CreatedAt:        createdAt,
	}
	require.NoError(t, db.Create(dispute).Error)
	return dispute
}

func TestUpdateDisputePersistsResolution(t *testing.T) {
	db := setupDisputeTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedDispute(t, db, uuid.New(), enums.DisputeStatusInvestigating, time.Now())
	admin := uuid.New()
	resolvedAt := time.Now()

	err := repo.UpdateDispute(ctx, seeded.ID, map[string]any{
		"status":      enums.DisputeStatusResolved,
		"outcome":     enums.DisputeOutcomeRefundToBuyer,
		"resolution":  "refund approved after courier confirmed loss",
		"resolved_by": admin,
		"resolved_at": resolvedAt,
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, reloaded.Status)
	require.NotNil(t, reloaded.Outcome)
	assert.Equal(t, enums.DisputeOutcomeRefundToBuyer, *reloaded.Outcome)
	require.NotNil(t, reloaded.ResolvedBy)
	assert.Equal(t, admin, *reloaded.ResolvedBy)
	require.NotNil(t, reloaded.ResolvedAt)
}

func TestFindByIDMissingDispute(t *testing.T) {
	db := setupDisputeTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListFiltersAndPaginatesNewestFirst(t *testing.T) {
	db := setupDisputeTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyer := uuid.New()
	base := time.Now().Add(-time.Hour)
	oldest := seedDispute(t, db, buyer, enums.DisputeStatusOpen, base)
	middle := seedDispute(t, db, buyer, enums.DisputeStatusOpen, base.Add(10*time.Minute))
	newest := seedDispute(t, db, buyer, enums.DisputeStatusOpen, base.Add(20*time.Minute))
	seedDispute(t, db, uuid.New(), enums.DisputeStatusOpen, base.Add(30*time.Minute))

	page, err := repo.List(ctx, ListFilter{FiledBy: &buyer}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, newest.ID, page[0].ID)
	assert.Equal(t, middle.ID, page[1].ID)
	assert.Equal(t, oldest.ID, page[2].ID)

	status := enums.DisputeStatusResolved
	empty, err := repo.List(ctx, ListFilter{FiledBy: &buyer, Status: &status}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
