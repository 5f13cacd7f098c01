package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
)

// Repository defines persistence operations for escrow transactions plus the
// order, delivery, and dispute columns the escrow ledger is allowed to
// mutate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEscrow(ctx context.Context, escrow *models.EscrowTransaction) (*models.EscrowTransaction, error)
	FindEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	TransitionEscrow(ctx context.Context, escrowID uuid.UUID, from enums.EscrowStatus, updates map[string]any) (int64, error)
	ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.EscrowTransaction, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	UpdateDelivery(ctx context.Context, deliveryID uuid.UUID, updates map[string]any) error
	CreateDeliveryHistory(ctx context.Context, entry *models.DeliveryStatusHistory) error
	CreateDispute(ctx context.Context, dispute *models.Dispute) (*models.Dispute, error)
}
