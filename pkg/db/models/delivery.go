package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/types"
)

// Delivery mirrors the courier shipment for one order. Created once, updated
// many times; history rows carry the audit trail.
type Delivery struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID                `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	VendorID          uuid.UUID                `gorm:"column:vendor_id;type:uuid;not null;index"`
	BuyerID           uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null"`
	ShipmentID        string                   `gorm:"column:shipment_id;not null"`
	TrackingNumber    string                   `gorm:"column:tracking_number;not null;index"`
	TrackingURL       *string                  `gorm:"column:tracking_url"`
	PickupAddress     *types.Address           `gorm:"column:pickup_address;type:jsonb;serializer:json"`
	DeliveryAddress   *types.Address           `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	Package           *types.PackageDimensions `gorm:"column:package;type:jsonb;serializer:json"`
	DeliveryType      enums.DeliveryType       `gorm:"column:delivery_type;type:text;not null;default:'standard'"`
	Status            enums.DeliveryStatus     `gorm:"column:status;type:text;not null;default:'pickup_scheduled'"`
	CostKobo          int64                    `gorm:"column:cost_kobo;not null;default:0"`
	EstimatedDelivery *time.Time               `gorm:"column:estimated_delivery"`
	ActualDelivery    *time.Time               `gorm:"column:actual_delivery"`
	ProofImageURL     *string                  `gorm:"column:proof_image_url"`
	RecipientName     *string                  `gorm:"column:recipient_name"`
	SignatureURL      *string                  `gorm:"column:signature_url"`
	Notes             *string                  `gorm:"column:notes"`
	LastStatusUpdate  *time.Time               `gorm:"column:last_status_update"`
	History           []DeliveryStatusHistory  `gorm:"foreignKey:DeliveryID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// DeliveryStatusHistory is one append-only audit row per status transition.
type DeliveryStatusHistory struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryID uuid.UUID                  `gorm:"column:delivery_id;type:uuid;not null;index"`
	Status     enums.DeliveryStatus       `gorm:"column:status;type:text;not null"`
	Location   *string                    `gorm:"column:location"`
	Notes      *string                    `gorm:"column:notes"`
	UpdatedBy  enums.DeliveryUpdateSource `gorm:"column:updated_by;type:text;not null"`
	CreatedAt  time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the singular table from the schema; gorm would pluralize.
func (DeliveryStatusHistory) TableName() string {
	return "delivery_status_history"
}
