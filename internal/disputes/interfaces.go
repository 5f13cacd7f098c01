package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

// ListFilter narrows a dispute listing.
type ListFilter struct {
	OrderID *uuid.UUID
	FiledBy *uuid.UUID
	Status  *enums.DisputeStatus
}

// Repository defines persistence operations for disputes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	UpdateDispute(ctx context.Context, disputeID uuid.UUID, updates map[string]any) error
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Dispute, error)
}
