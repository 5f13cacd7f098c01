package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

// ListFilter narrows an order listing to one side of the marketplace.
// Exactly one of BuyerID or VendorID should be set; Status is optional.
type ListFilter struct {
	BuyerID  *uuid.UUID
	VendorID *uuid.UUID
	Status   *enums.OrderStatus
}

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error)
}
