package enums

import "fmt"

// PayoutStatus tracks a withdrawal from a vendor wallet to a bank account.
// A failed payout is never resurrected; retries create a fresh payout.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusCompleted,
	PayoutStatusFailed,
}

var payoutStatusTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing},
	PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed},
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payout has reconciled.
func (p PayoutStatus) IsTerminal() bool {
	return p == PayoutStatusCompleted || p == PayoutStatusFailed
}

// CanTransitionTo reports whether the payout may move to the target status.
func (p PayoutStatus) CanTransitionTo(target PayoutStatus) bool {
	for _, candidate := range payoutStatusTransitions[p] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
