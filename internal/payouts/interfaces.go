package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

// Repository defines persistence operations for payout requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	FindByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	UpdatePayout(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error
	List(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Payout, error)
}
