package enums

// DeliveryUpdateSource tags who appended a delivery status history row.
type DeliveryUpdateSource string

const (
	DeliveryUpdateSourceCourierWebhook DeliveryUpdateSource = "gigl_webhook"
	DeliveryUpdateSourceVendor         DeliveryUpdateSource = "vendor"
	DeliveryUpdateSourceBuyer          DeliveryUpdateSource = "buyer"
	DeliveryUpdateSourceSystem         DeliveryUpdateSource = "system"
)

// String implements fmt.Stringer.
func (d DeliveryUpdateSource) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryUpdateSource.
func (d DeliveryUpdateSource) IsValid() bool {
	switch d {
	case DeliveryUpdateSourceCourierWebhook, DeliveryUpdateSourceVendor,
		DeliveryUpdateSourceBuyer, DeliveryUpdateSourceSystem:
		return true
	default:
		return false
	}
}
