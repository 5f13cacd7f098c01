package enums

import "fmt"

// EscrowStatus tracks the money held against an order. Held funds end up
// released or refunded exactly once, optionally passing through disputed;
// a dismissed dispute puts the hold back to held.
type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
	EscrowStatusDisputed EscrowStatus = "disputed"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusHeld,
	EscrowStatusReleased,
	EscrowStatusRefunded,
	EscrowStatusDisputed,
}

var escrowStatusTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusHeld:     {EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusDisputed},
	EscrowStatusDisputed: {EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusHeld},
}

// String implements fmt.Stringer.
func (e EscrowStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowStatus.
func (e EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the escrow funds have already moved.
func (e EscrowStatus) IsTerminal() bool {
	return e == EscrowStatusReleased || e == EscrowStatusRefunded
}

// CanTransitionTo reports whether escrow may move to the target status.
func (e EscrowStatus) CanTransitionTo(target EscrowStatus) bool {
	for _, candidate := range escrowStatusTransitions[e] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseEscrowStatus converts raw input into an EscrowStatus.
func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}
