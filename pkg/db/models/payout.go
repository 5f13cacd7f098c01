package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/types"
)

// Payout is a withdrawal request draining wallet balance to a bank account.
// Created together with its debiting WalletTransaction as one unit.
type Payout struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID          uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;index"`
	AmountKobo        int64              `gorm:"column:amount_kobo;not null"`
	BankAccount       *types.BankAccount `gorm:"column:bank_account;type:jsonb;serializer:json"`
	Status            enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TransferReference *string            `gorm:"column:transfer_reference"`
	FailureReason     *string            `gorm:"column:failure_reason"`
	CompletedAt       *time.Time         `gorm:"column:completed_at"`
	FailedAt          *time.Time         `gorm:"column:failed_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
