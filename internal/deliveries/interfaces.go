package deliveries

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
)

// Repository defines persistence operations for deliveries, their audit
// trail, and the order columns delivery progress is allowed to touch.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	FindByID(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	FindByShipment(ctx context.Context, shipmentID string) (*models.Delivery, error)
	UpdateDelivery(ctx context.Context, deliveryID uuid.UUID, updates map[string]any) error
	CreateHistory(ctx context.Context, entry *models.DeliveryStatusHistory) error
	ListHistory(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryStatusHistory, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}
