package deliveries

import (
	"github.com/shopspring/decimal"

	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/types"
)

// zoneRate prices shipments terminating in one state. Amounts in kobo.
type zoneRate struct {
	baseKobo  int64
	perKgKobo int64
}

// zoneRates is the fallback table used when the courier cannot quote.
// Destination state keyed, lowercase.
var zoneRates = map[string]zoneRate{
	"lagos":   {baseKobo: 150_000, perKgKobo: 20_000},
	"ogun":    {baseKobo: 180_000, perKgKobo: 25_000},
	"oyo":     {baseKobo: 200_000, perKgKobo: 25_000},
	"abuja":   {baseKobo: 250_000, perKgKobo: 30_000},
	"fct":     {baseKobo: 250_000, perKgKobo: 30_000},
	"rivers":  {baseKobo: 280_000, perKgKobo: 35_000},
	"kano":    {baseKobo: 300_000, perKgKobo: 35_000},
	"enugu":   {baseKobo: 270_000, perKgKobo: 30_000},
	"kaduna":  {baseKobo: 290_000, perKgKobo: 35_000},
	"anambra": {baseKobo: 270_000, perKgKobo: 30_000},
}

// defaultZoneRate covers states without an explicit entry.
var defaultZoneRate = zoneRate{baseKobo: 320_000, perKgKobo: 40_000}

var (
	expressMultiplier   = decimal.NewFromFloat(1.5)
	sameDayMultiplier   = decimal.NewFromInt(2)
	interstateSurcharge = decimal.NewFromFloat(0.25)
)

// zoneRateCost prices a shipment from the static table. Deterministic:
// the same inputs always produce the same kobo amount, rounded half-up.
func zoneRateCost(pickup, destination types.Address, pkg types.PackageDimensions, deliveryType enums.DeliveryType) int64 {
	rate, ok := zoneRates[destination.NormalizedState()]
	if !ok {
		rate = defaultZoneRate
	}

	weightKg := decimal.NewFromInt(pkg.WeightGrams).Div(decimal.NewFromInt(1000))
	cost := decimal.NewFromInt(rate.baseKobo).
		Add(decimal.NewFromInt(rate.perKgKobo).Mul(weightKg))

	if pickup.NormalizedState() != destination.NormalizedState() {
		cost = cost.Add(cost.Mul(interstateSurcharge))
	}

	switch deliveryType {
	case enums.DeliveryTypeExpress:
		cost = cost.Mul(expressMultiplier)
	case enums.DeliveryTypeSameDay:
		cost = cost.Mul(sameDayMultiplier)
	}

	return cost.Round(0).IntPart()
}
