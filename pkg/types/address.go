package types

import (
	"fmt"
	"strings"
)

// Address is the snapshot embedded in orders and deliveries. Stored as jsonb;
// State drives the zone-rate fallback so it is always required.
type Address struct {
	ContactName string  `json:"contact_name"`
	Phone       string  `json:"phone"`
	Line1       string  `json:"line1"`
	Line2       *string `json:"line2,omitempty"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	PostalCode  *string `json:"postal_code,omitempty"`
	Country     string  `json:"country"`
}

// Validate checks the fields needed to route a shipment.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.State) == "" {
		return fmt.Errorf("address: missing state")
	}
	return nil
}

// NormalizedState returns the state name the zone-rate table is keyed by.
func (a Address) NormalizedState() string {
	return strings.ToLower(strings.TrimSpace(a.State))
}
