package bookings

import (
	"math"

	"shiplink/internal/models"
)

// Quote prices a prospective booking in minor currency units and validates
// the weight against the carrier minimum and the journey's remaining
// capacity. It has no side effects; the same inputs always produce the same
// price.
func Quote(j *models.Journey, weightKg float64, contents []string) (int64, error) {
	if weightKg < models.MinPackageWeightKg {
		return 0, models.ErrInvalidWeight
	}
	if weightKg > j.RemainingCapacityKg() {
		return 0, models.ErrInvalidWeight
	}
	return priceCents(j, weightKg, contents), nil
}

// priceCents is the pure pricing rule: weight x pricePerKg x multiplier,
// where the multiplier is the highest of the carrier's special rates that
// names a content category of the package, or 1.0 when none applies.
// Receipts re-derive the price from here so a stored copy can never drift.
func priceCents(j *models.Journey, weightKg float64, contents []string) int64 {
	multiplier := 1.0
	if j.Carrier != nil && len(j.Carrier.SpecialRates) > 0 {
		found := false
		for _, item := range contents {
			rate, ok := j.Carrier.SpecialRates[item]
			if !ok {
				continue
			}
			if !found || rate > multiplier {
				multiplier = rate
				found = true
			}
		}
	}
	return int64(math.Round(weightKg * float64(j.PricePerKg) * multiplier))
}
