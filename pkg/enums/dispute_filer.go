package enums

import "fmt"

// DisputeFilerType identifies which side of the order filed a dispute.
type DisputeFilerType string

const (
	DisputeFilerBuyer  DisputeFilerType = "buyer"
	DisputeFilerVendor DisputeFilerType = "vendor"
)

// String implements fmt.Stringer.
func (d DisputeFilerType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeFilerType.
func (d DisputeFilerType) IsValid() bool {
	return d == DisputeFilerBuyer || d == DisputeFilerVendor
}

// ParseDisputeFilerType converts raw input into a DisputeFilerType.
func ParseDisputeFilerType(value string) (DisputeFilerType, error) {
	switch DisputeFilerType(value) {
	case DisputeFilerBuyer:
		return DisputeFilerBuyer, nil
	case DisputeFilerVendor:
		return DisputeFilerVendor, nil
	default:
		return "", fmt.Errorf("invalid dispute filer type %q", value)
	}
}

// DisputeOutcome is the adjudicated result of a dispute.
type DisputeOutcome string

const (
	DisputeOutcomeReleaseToVendor DisputeOutcome = "release_to_vendor"
	DisputeOutcomeRefundToBuyer   DisputeOutcome = "refund_to_buyer"
)

// String implements fmt.Stringer.
func (d DisputeOutcome) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeOutcome.
func (d DisputeOutcome) IsValid() bool {
	return d == DisputeOutcomeReleaseToVendor || d == DisputeOutcomeRefundToBuyer
}

// ParseDisputeOutcome converts raw input into a DisputeOutcome.
func ParseDisputeOutcome(value string) (DisputeOutcome, error) {
	switch DisputeOutcome(value) {
	case DisputeOutcomeReleaseToVendor:
		return DisputeOutcomeReleaseToVendor, nil
	case DisputeOutcomeRefundToBuyer:
		return DisputeOutcomeRefundToBuyer, nil
	default:
		return "", fmt.Errorf("invalid dispute outcome %q", value)
	}
}
