package enums

import "fmt"

// DisputeStatus tracks adjudication of a filed dispute. Investigating is
// optional; a dispute may resolve straight from open.
type DisputeStatus string

const (
	DisputeStatusOpen          DisputeStatus = "open"
	DisputeStatusInvestigating DisputeStatus = "investigating"
	DisputeStatusResolved      DisputeStatus = "resolved"
	DisputeStatusClosed        DisputeStatus = "closed"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusInvestigating,
	DisputeStatusResolved,
	DisputeStatusClosed,
}

var disputeStatusTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen:          {DisputeStatusInvestigating, DisputeStatusResolved},
	DisputeStatusInvestigating: {DisputeStatusResolved, DisputeStatusClosed},
}

// String implements fmt.Stringer.
func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dispute is settled.
func (d DisputeStatus) IsTerminal() bool {
	return d == DisputeStatusResolved || d == DisputeStatusClosed
}

// CanTransitionTo reports whether the dispute may move to the target status.
func (d DisputeStatus) CanTransitionTo(target DisputeStatus) bool {
	for _, candidate := range disputeStatusTransitions[d] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}
