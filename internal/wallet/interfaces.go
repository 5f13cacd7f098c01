package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

// Repository defines persistence operations for vendor wallets and their
// ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWalletByVendor(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error)
	CreateWallet(ctx context.Context, wallet *models.VendorWallet) (*models.VendorWallet, error)
	CompareAndSwapBalance(ctx context.Context, vendorID uuid.UUID, expected, next int64) (bool, error)
	CreateTransaction(ctx context.Context, tx *models.WalletTransaction) (*models.WalletTransaction, error)
	FindTransactionByTypeAndReference(ctx context.Context, vendorID uuid.UUID, txType enums.WalletTransactionType, reference string) (*models.WalletTransaction, error)
	UpdateTransactionStatus(ctx context.Context, vendorID uuid.UUID, txType enums.WalletTransactionType, reference string, status enums.WalletTransactionStatus) error
	FindNewestTransaction(ctx context.Context, vendorID uuid.UUID) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error)
}
