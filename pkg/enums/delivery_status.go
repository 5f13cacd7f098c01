package enums

import "fmt"

// DeliveryStatus mirrors the courier shipment lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusPickupScheduled DeliveryStatus = "pickup_scheduled"
	DeliveryStatusInTransit       DeliveryStatus = "in_transit"
	DeliveryStatusDelivered       DeliveryStatus = "delivered"
	DeliveryStatusCancelled       DeliveryStatus = "cancelled"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPickupScheduled,
	DeliveryStatusInTransit,
	DeliveryStatusDelivered,
	DeliveryStatusCancelled,
}

var deliveryStatusTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPickupScheduled: {DeliveryStatusInTransit, DeliveryStatusDelivered, DeliveryStatusCancelled},
	DeliveryStatusInTransit:       {DeliveryStatusDelivered, DeliveryStatusCancelled},
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the shipment has finished moving.
func (d DeliveryStatus) IsTerminal() bool {
	return d == DeliveryStatusDelivered || d == DeliveryStatusCancelled
}

// CanTransitionTo reports whether the shipment may move to the target status.
func (d DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	for _, candidate := range deliveryStatusTransitions[d] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
