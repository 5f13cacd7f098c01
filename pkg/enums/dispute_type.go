package enums

import "fmt"

// DisputeType classifies what the filer claims went wrong.
type DisputeType string

const (
	DisputeTypeNonDelivery  DisputeType = "non_delivery"
	DisputeTypeWrongItem    DisputeType = "wrong_item"
	DisputeTypeDamagedItem  DisputeType = "damaged_item"
	DisputeTypeQualityIssue DisputeType = "quality_issue"
	DisputeTypeOther        DisputeType = "other"
)

var validDisputeTypes = []DisputeType{
	DisputeTypeNonDelivery,
	DisputeTypeWrongItem,
	DisputeTypeDamagedItem,
	DisputeTypeQualityIssue,
	DisputeTypeOther,
}

// String implements fmt.Stringer.
func (d DisputeType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeType.
func (d DisputeType) IsValid() bool {
	for _, candidate := range validDisputeTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeType converts raw input into a DisputeType.
func ParseDisputeType(value string) (DisputeType, error) {
	for _, candidate := range validDisputeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute type %q", value)
}
