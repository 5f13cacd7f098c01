package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return nil, err
	}
	return payout, nil
}

func (r *repository) FindByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Where("id = ?", payoutID).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) UpdatePayout(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ?", payoutID).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Payout, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("vendor_id = ?", vendorID)

	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var payouts []models.Payout
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}
