package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/types"
)

// Order is a single buyer-vendor transaction moving through the settlement
// pipeline. TotalKobo is always recomputed from items plus the shipping fee;
// callers never supply it.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID         uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	VendorID        uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	DeliveryAddress *types.Address      `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	DeliveryType    enums.DeliveryType  `gorm:"column:delivery_type;type:text;not null;default:'standard'"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	SubtotalKobo    int64               `gorm:"column:subtotal_kobo;not null"`
	ShippingFeeKobo int64               `gorm:"column:shipping_fee_kobo;not null;default:0"`
	TotalKobo       int64               `gorm:"column:total_kobo;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod   *string             `gorm:"column:payment_method"`
	PaymentRef      *string             `gorm:"column:payment_ref"`
	TrackingNumber  *string             `gorm:"column:tracking_number"`
	Notes           *string             `gorm:"column:notes"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is an immutable line within an order. Title, image, and unit
// price are snapshotted from the product at order time and never re-read.
type OrderItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Title         string    `gorm:"column:title;not null"`
	ImageURL      *string   `gorm:"column:image_url"`
	Quantity      int       `gorm:"column:quantity;not null"`
	UnitPriceKobo int64     `gorm:"column:unit_price_kobo;not null"`
	TotalKobo     int64     `gorm:"column:total_kobo;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
