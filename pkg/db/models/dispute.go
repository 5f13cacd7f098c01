package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ojalabs/oja-backend/pkg/enums"
)

// Dispute is a buyer- or vendor-raised hold on escrow release. While a
// dispute is open the linked escrow transaction stays in disputed and only a
// resolution moves it out.
type Dispute struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	EscrowID         *uuid.UUID             `gorm:"column:escrow_id;type:uuid"`
	FiledBy          uuid.UUID              `gorm:"column:filed_by;type:uuid;not null"`
	FiledByType      enums.DisputeFilerType `gorm:"column:filed_by_type;type:text;not null"`
	Type             enums.DisputeType      `gorm:"column:type;type:text;not null"`
	Description      string                 `gorm:"column:description;not null"`
	EvidenceURLs     pq.StringArray         `gorm:"column:evidence_urls;type:text[]"`
	Status           enums.DisputeStatus    `gorm:"column:status;type:text;not null;default:'open'"`
	PriorOrderStatus enums.OrderStatus      `gorm:"column:prior_order_status;type:text;not null"`
	Outcome          *enums.DisputeOutcome  `gorm:"column:outcome;type:text"`
	Resolution       *string                `gorm:"column:resolution"`
	ResolvedBy       *uuid.UUID             `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt       *time.Time             `gorm:"column:resolved_at"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
