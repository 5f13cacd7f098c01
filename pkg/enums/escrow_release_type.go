package enums

import "fmt"

// EscrowReleaseType records what triggered an escrow release.
type EscrowReleaseType string

const (
	EscrowReleaseAutoDelivery      EscrowReleaseType = "auto_delivery"
	EscrowReleaseManualBuyer       EscrowReleaseType = "manual_buyer"
	EscrowReleaseAdminOverride     EscrowReleaseType = "admin_override"
	EscrowReleaseDisputeResolution EscrowReleaseType = "dispute_resolution"
)

var validEscrowReleaseTypes = []EscrowReleaseType{
	EscrowReleaseAutoDelivery,
	EscrowReleaseManualBuyer,
	EscrowReleaseAdminOverride,
	EscrowReleaseDisputeResolution,
}

// String implements fmt.Stringer.
func (e EscrowReleaseType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowReleaseType.
func (e EscrowReleaseType) IsValid() bool {
	for _, candidate := range validEscrowReleaseTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEscrowReleaseType converts raw input into an EscrowReleaseType.
func ParseEscrowReleaseType(value string) (EscrowReleaseType, error) {
	for _, candidate := range validEscrowReleaseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow release type %q", value)
}
