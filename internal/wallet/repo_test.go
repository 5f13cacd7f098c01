package wallet

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

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS vendor_wallets (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL UNIQUE,
  balance_kobo INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount_kobo INTEGER NOT NULL,
  balance_after_kobo INTEGER NOT NULL,
  reference TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'completed',
  narration TEXT,
  created_at DATETIME,
  UNIQUE (type, reference)
);`
	require.NoError(t, db.Exec(wallets).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

func TestCompareAndSwapBalanceDetectsStaleRead(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	_, err := repo.CreateWallet(ctx, &models.VendorWallet{
		ID:          uuid.New(),
		VendorID:    vendorID,
		BalanceKobo: 100_000,
	})
	require.NoError(t, err)

	swapped, err := repo.CompareAndSwapBalance(ctx, vendorID, 100_000, 150_000)
	require.NoError(t, err)
	assert.True(t, swapped)

	// Second writer still holding the old balance must lose.
	swapped, err = repo.CompareAndSwapBalance(ctx, vendorID, 100_000, 120_000)
	require.NoError(t, err)
	assert.False(t, swapped)

	wallet, err := repo.FindWalletByVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(150_000), wallet.BalanceKobo)
}

func TestTransactionUniquePerTypeAndReference(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()
	reference := uuid.NewString()

	_, err := repo.CreateTransaction(ctx, &models.WalletTransaction{
		ID:               uuid.New(),
		VendorID:         vendorID,
		Type:             enums.WalletTransactionTypeSale,
		AmountKobo:       250_000,
		BalanceAfterKobo: 250_000,
		Reference:        reference,
		Status:           enums.WalletTransactionStatusCompleted,
	})
	require.NoError(t, err)

	_, err = repo.CreateTransaction(ctx, &models.WalletTransaction{
		ID:               uuid.New(),
		VendorID:         vendorID,
		Type:             enums.WalletTransactionTypeSale,
		AmountKobo:       250_000,
		BalanceAfterKobo: 500_000,
		Reference:        reference,
		Status:           enums.WalletTransactionStatusCompleted,
	})
	require.Error(t, err)

	found, err := repo.FindTransactionByTypeAndReference(ctx, vendorID, enums.WalletTransactionTypeSale, reference)
	require.NoError(t, err)
	assert.Equal(t, int64(250_000), found.BalanceAfterKobo)
}

func TestListTransactionsPaginatesNewestFirst(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	base := time.Now().Add(-time.Hour)
	balance := int64(0)
	for i := 0; i < 5; i++ {
		balance += 10_000
		entry := &models.WalletTransaction{
			ID:               uuid.New(),
			VendorID:         vendorID,
			Type:             enums.WalletTransactionTypeSale,
			AmountKobo:       10_000,
			BalanceAfterKobo: balance,
			Reference:        uuid.NewString(),
			Status:           enums.WalletTransactionStatusCompleted,
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(entry).Error)
	}

	page, err := repo.ListTransactions(ctx, vendorID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 3) // limit + 1 buffer row
	assert.Equal(t, int64(50_000), page[0].BalanceAfterKobo)
	assert.Equal(t, int64(40_000), page[1].BalanceAfterKobo)

	newest, err := repo.FindNewestTransaction(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), newest.BalanceAfterKobo)
}

func TestUpdateTransactionStatus(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()
	reference := uuid.NewString()

	_, err := repo.CreateTransaction(ctx, &models.WalletTransaction{
		ID:               uuid.New(),
		VendorID:         vendorID,
		Type:             enums.WalletTransactionTypePayout,
		AmountKobo:       -80_000,
		BalanceAfterKobo: 20_000,
		Reference:        reference,
		Status:           enums.WalletTransactionStatusPending,
	})
	require.NoError(t, err)

	err = repo.UpdateTransactionStatus(ctx, vendorID, enums.WalletTransactionTypePayout, reference, enums.WalletTransactionStatusCompleted)
	require.NoError(t, err)

	found, err := repo.FindTransactionByTypeAndReference(ctx, vendorID, enums.WalletTransactionTypePayout, reference)
	require.NoError(t, err)
	assert.Equal(t, enums.WalletTransactionStatusCompleted, found.Status)
}
