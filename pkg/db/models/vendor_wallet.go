package models

import (
	"time"

	"github.com/google/uuid"
)

// VendorWallet is the single mutable money cell per vendor. BalanceKobo is
// only ever written through the wallet service's compare-and-swap, paired
// with the WalletTransaction that explains the delta.
type VendorWallet struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID    uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex"`
	BalanceKobo int64     `gorm:"column:balance_kobo;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
