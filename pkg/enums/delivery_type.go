package enums

import "fmt"

// DeliveryType selects the courier service level.
type DeliveryType string

const (
	DeliveryTypeStandard DeliveryType = "standard"
	DeliveryTypeExpress  DeliveryType = "express"
	DeliveryTypeSameDay  DeliveryType = "same_day"
)

var validDeliveryTypes = []DeliveryType{
	DeliveryTypeStandard,
	DeliveryTypeExpress,
	DeliveryTypeSameDay,
}

// String implements fmt.Stringer.
func (d DeliveryType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryType.
func (d DeliveryType) IsValid() bool {
	for _, candidate := range validDeliveryTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryType converts raw input into a DeliveryType.
func ParseDeliveryType(value string) (DeliveryType, error) {
	for _, candidate := range validDeliveryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery type %q", value)
}
