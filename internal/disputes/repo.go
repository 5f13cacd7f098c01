package disputes

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

// NewRepository builds a dispute repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Where("id = ?", disputeID).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) UpdateDispute(ctx context.Context, disputeID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", disputeID).
		Updates(updates).Error
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Dispute, error) {
	query := r.db.WithContext(ctx).Model(&models.Dispute{})

	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.FiledBy != nil {
		query = query.Where("filed_by = ?", *filter.FiledBy)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

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

	var disputes []models.Dispute
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&disputes).Error
	if err != nil {
		return nil, err
	}
	return disputes, nil
}
