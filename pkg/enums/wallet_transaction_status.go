package enums

import "fmt"

// WalletTransactionStatus tracks settlement of a wallet ledger entry. Payout
// debits stay pending until the transfer reconciles; everything else settles
// immediately.
type WalletTransactionStatus string

const (
	WalletTransactionStatusPending   WalletTransactionStatus = "pending"
	WalletTransactionStatusCompleted WalletTransactionStatus = "completed"
	WalletTransactionStatusReversed  WalletTransactionStatus = "reversed"
)

var validWalletTransactionStatuses = []WalletTransactionStatus{
	WalletTransactionStatusPending,
	WalletTransactionStatusCompleted,
	WalletTransactionStatusReversed,
}

// String implements fmt.Stringer.
func (w WalletTransactionStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTransactionStatus.
func (w WalletTransactionStatus) IsValid() bool {
	for _, candidate := range validWalletTransactionStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletTransactionStatus converts raw input into a WalletTransactionStatus.
func ParseWalletTransactionStatus(value string) (WalletTransactionStatus, error) {
	for _, candidate := range validWalletTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction status %q", value)
}
