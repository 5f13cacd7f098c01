package courier

import (
	"time"

	"github.com/ojalabs/oja-backend/pkg/types"
)

// QuoteParams asks the gateway to price a shipment before it exists.
type QuoteParams struct {
	PickupAddress   types.Address           `json:"pickup_address"`
	DeliveryAddress types.Address           `json:"delivery_address"`
	Package         types.PackageDimensions `json:"package"`
	DeliveryType    string                  `json:"delivery_type"`
}

// Quote is the gateway's price for a prospective shipment.
type Quote struct {
	CostKobo     int64  `json:"cost_kobo"`
	Currency     string `json:"currency"`
	DeliveryType string `json:"delivery_type"`
	EstimatedETA string `json:"estimated_eta,omitempty"`
}

// ShipmentCreateParams registers a shipment with the gateway.
type ShipmentCreateParams struct {
	OrderReference  string                  `json:"order_reference"`
	PickupAddress   types.Address           `json:"pickup_address"`
	DeliveryAddress types.Address           `json:"delivery_address"`
	Package         types.PackageDimensions `json:"package"`
	DeliveryType    string                  `json:"delivery_type"`
	Notes           string                  `json:"notes,omitempty"`
}

// Shipment is the gateway's record of a registered delivery.
type Shipment struct {
	ShipmentID        string     `json:"shipment_id"`
	TrackingNumber    string     `json:"tracking_number"`
	TrackingURL       string     `json:"tracking_url"`
	CostKobo          int64      `json:"cost_kobo"`
	Status            string     `json:"status"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// TrackingEvent is one checkpoint in a shipment's history.
type TrackingEvent struct {
	Status    string    `json:"status"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackingInfo is the gateway's current view of a shipment.
type TrackingInfo struct {
	ShipmentID        string          `json:"shipment_id"`
	TrackingNumber    string          `json:"tracking_number"`
	Status            string          `json:"status"`
	Events            []TrackingEvent `json:"events"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
}

// WebhookEvent is the payload the gateway posts to our status callback.
type WebhookEvent struct {
	EventID        string     `json:"event_id"`
	ShipmentID     string     `json:"shipment_id"`
	TrackingNumber string     `json:"tracking_number"`
	Status         string     `json:"status"`
	Location       string     `json:"location,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	RecipientName  string     `json:"recipient_name,omitempty"`
	OccurredAt     *time.Time `json:"occurred_at,omitempty"`
}
