package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/pkg/enums"
)

// WalletTransaction is an append-only ledger entry against a vendor wallet.
// AmountKobo is signed: credits positive, debits negative. BalanceAfterKobo
// is the wallet balance immediately after this entry applied; the newest
// entry's value always equals the wallet's current balance.
type WalletTransaction struct {
	ID               uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID         uuid.UUID                     `gorm:"column:vendor_id;type:uuid;not null;index"`
	Type             enums.WalletTransactionType   `gorm:"column:type;type:text;not null;uniqueIndex:idx_wallet_tx_type_reference"`
	AmountKobo       int64                         `gorm:"column:amount_kobo;not null"`
	BalanceAfterKobo int64                         `gorm:"column:balance_after_kobo;not null"`
	Reference        string                        `gorm:"column:reference;not null;uniqueIndex:idx_wallet_tx_type_reference"`
	Status           enums.WalletTransactionStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	Narration        *string                       `gorm:"column:narration"`
	CreatedAt        time.Time                     `gorm:"column:created_at;autoCreateTime"`
}
