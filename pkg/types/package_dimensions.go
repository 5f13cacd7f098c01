package types

import "fmt"

// PackageDimensions describes the parcel handed to the courier. Weight is in
// kilograms with three decimal places of precision carried as grams.
type PackageDimensions struct {
	WeightGrams int64 `json:"weight_grams"`
	LengthCM    int   `json:"length_cm,omitempty"`
	WidthCM     int   `json:"width_cm,omitempty"`
	HeightCM    int   `json:"height_cm,omitempty"`
}

// Validate rejects parcels the courier cannot quote.
func (p PackageDimensions) Validate() error {
	if p.WeightGrams <= 0 {
		return fmt.Errorf("package: weight must be positive")
	}
	if p.LengthCM < 0 || p.WidthCM < 0 || p.HeightCM < 0 {
		return fmt.Errorf("package: dimensions cannot be negative")
	}
	return nil
}

// WeightKg returns the parcel weight in kilograms.
func (p PackageDimensions) WeightKg() float64 {
	return float64(p.WeightGrams) / 1000.0
}
