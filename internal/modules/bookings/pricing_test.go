package bookings

import (
	"testing"

	"shiplink/internal/models"
)

func pricingJourney(pricePerKg int64, capacity, reserved float64, rates map[string]float64) *models.Journey {
	return &models.Journey{
		ID:               "j1",
		PricePerKg:       pricePerKg,
		ReservedWeightKg: reserved,
		Vehicle:          &models.Vehicle{ID: "v1", CapacityKg: capacity},
		Carrier:          &models.User{ID: "c1", SpecialRates: rates},
	}
}

func TestQuoteSpecialRate(t *testing.T) {
	j := pricingJourney(8, 2000, 0, map[string]float64{"Electronics": 2.0})

	got, err := Quote(j, 20, []string{"Electronics"})
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	// 20kg x 8 x 2.0 = 320
	if got != 320 {
		t.Errorf("Quote = %d; want 320", got)
	}
}

func TestQuoteNoMatchingRate(t *testing.T) {
	j := pricingJourney(8, 2000, 0, map[string]float64{"Electronics": 2.0})

	got, err := Quote(j, 20, []string{"Books", "Clothes"})
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if got != 160 {
		t.Errorf("Quote = %d; want 160", got)
	}
}

func TestQuotePicksHighestRate(t *testing.T) {
	j := pricingJourney(10, 2000, 0, map[string]float64{"Electronics": 2.0, "Glassware": 3.0})

	got, err := Quote(j, 20, []string{"Electronics", "Glassware"})
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if got != 600 {
		t.Errorf("Quote = %d; want 600", got)
	}
}

func TestQuoteDiscountRateApplies(t *testing.T) {
	// A matching rate below 1.0 is still the multiplier; 1.0 is only the
	// fallback when no category matches.
	j := pricingJourney(10, 2000, 0, map[string]float64{"Books": 0.5})

	got, err := Quote(j, 20, []string{"Books"})
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if got != 100 {
		t.Errorf("Quote = %d; want 100", got)
	}
}

func TestQuoteRejectsUnderweight(t *testing.T) {
	j := pricingJourney(8, 2000, 0, nil)

	if _, err := Quote(j, 14.9, []string{"Books"}); err != models.ErrInvalidWeight {
		t.Errorf("Quote underweight err = %v; want ErrInvalidWeight", err)
	}
}

func TestQuoteRejectsOverCapacity(t *testing.T) {
	j := pricingJourney(8, 2000, 1990, nil)

	if _, err := Quote(j, 20, []string{"Books"}); err != models.ErrInvalidWeight {
		t.Errorf("Quote over capacity err = %v; want ErrInvalidWeight", err)
	}
}

func TestQuoteDeterministic(t *testing.T) {
	j := pricingJourney(13, 2000, 100, map[string]float64{"Electronics": 1.7})
	contents := []string{"Electronics", "Books"}

	first, err := Quote(j, 33.5, contents)
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Quote(j, 33.5, contents)
		if err != nil {
			t.Fatalf("Quote error: %v", err)
		}
		if again != first {
			t.Fatalf("Quote not deterministic: %d != %d", again, first)
		}
	}
}
