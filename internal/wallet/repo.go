package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallet repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWalletByVendor(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	var wallet models.VendorWallet
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.VendorWallet) (*models.VendorWallet, error) {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return nil, err
	}
	return wallet, nil
}

// CompareAndSwapBalance writes the new balance only if the current value
// still matches the one the caller read. Returns false when another writer
// got there first.
func (r *repository) CompareAndSwapBalance(ctx context.Context, vendorID uuid.UUID, expected, next int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VendorWallet{}).
		Where("vendor_id = ? AND balance_kobo = ?", vendorID, expected).
		Updates(map[string]any{"balance_kobo": next})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateTransaction(ctx context.Context, tx *models.WalletTransaction) (*models.WalletTransaction, error) {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *repository) FindTransactionByTypeAndReference(ctx context.Context, vendorID uuid.UUID, txType enums.WalletTransactionType, reference string) (*models.WalletTransaction, error) {
	var entry models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND type = ? AND reference = ?", vendorID, txType, reference).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) UpdateTransactionStatus(ctx context.Context, vendorID uuid.UUID, txType enums.WalletTransactionType, reference string, status enums.WalletTransactionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("vendor_id = ? AND type = ? AND reference = ?", vendorID, txType, reference).
		Update("status", status).Error
}

func (r *repository) FindNewestTransaction(ctx context.Context, vendorID uuid.UUID) (*models.WalletTransaction, error) {
	var entry models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListTransactions(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.WalletTransaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
