package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an escrow repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEscrow(ctx context.Context, escrow *models.EscrowTransaction) (*models.EscrowTransaction, error) {
	if err := r.db.WithContext(ctx).Create(escrow).Error; err != nil {
		return nil, err
	}
	return escrow, nil
}

func (r *repository) FindEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	var escrow models.EscrowTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&escrow).Error
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// TransitionEscrow applies updates only while the row still holds the status
// the caller read. Zero affected rows means a concurrent settlement won.
func (r *repository) TransitionEscrow(ctx context.Context, escrowID uuid.UUID, from enums.EscrowStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EscrowTransaction{}).
		Where("id = ? AND status = ?", escrowID, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// ListExpiredHolds returns held escrows whose order was delivered at or
// before the cutoff, oldest delivery first.
func (r *repository) ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.EscrowTransaction, error) {
	var rows []models.EscrowTransaction
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = escrow_transactions.order_id").
		Where("escrow_transactions.status = ?", enums.EscrowStatusHeld).
		Where("orders.status = ?", enums.OrderStatusDelivered).
		Where("orders.delivered_at IS NOT NULL AND orders.delivered_at <= ?", cutoff).
		Order("orders.delivered_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) UpdateDelivery(ctx context.Context, deliveryID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		Updates(updates).Error
}

func (r *repository) CreateDeliveryHistory(ctx context.Context, entry *models.DeliveryStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateDispute(ctx context.Context, dispute *models.Dispute) (*models.Dispute, error) {
	if err := r.db.WithContext(ctx).Create(dispute).Error; err != nil {
		return nil, err
	}
	return dispute, nil
}
