package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/pkg/enums"
)

// EscrowTransaction holds the buyer's payment against one order until
// delivery confirms or a refund clears. Exactly one active transaction per
// order; VendorAmountKobo plus PlatformFeeKobo equals the order total.
type EscrowTransaction struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	VendorID         uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null;index"`
	BuyerID          uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null"`
	Status           enums.EscrowStatus      `gorm:"column:status;type:text;not null;default:'held'"`
	VendorAmountKobo int64                   `gorm:"column:vendor_amount_kobo;not null"`
	PlatformFeeKobo  int64                   `gorm:"column:platform_fee_kobo;not null"`
	ReleaseType      *enums.EscrowReleaseType `gorm:"column:release_type;type:text"`
	ReleaseReason    *string                 `gorm:"column:release_reason"`
	ReleasedBy       *uuid.UUID              `gorm:"column:released_by;type:uuid"`
	ReleasedAt       *time.Time              `gorm:"column:released_at"`
	RefundedAt       *time.Time              `gorm:"column:refunded_at"`
	BuyerConfirmed   bool                    `gorm:"column:buyer_confirmed;not null;default:false"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
