package journeys

import (
	"testing"
	"time"

	"shiplink/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func indexJourney(id string, from, to string, departure time.Time, pricePerKg int64, stops ...string) *models.Journey {
	j := &models.Journey{
		ID:            id,
		DepartureCity: from,
		ArrivalCity:   to,
		DepartureDate: departure,
		PricePerKg:    pricePerKg,
		Status:        models.JourneyScheduled,
	}
	for _, city := range stops {
		j.StopPoints = append(j.StopPoints, models.StopPoint{City: city, Address: city + " depot", CollectionDate: departure})
	}
	return j
}

func ids(journeys []*models.Journey) []string {
	out := make([]string, len(journeys))
	for i, j := range journeys {
		out[i] = j.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearchOrdering(t *testing.T) {
	ix := NewSearchIndex()
	// Inserted deliberately out of order; results must come back sorted by
	// departure date, then price, then id.
	ix.Insert(indexJourney("j-c", "Paris", "Algiers", day(12), 900))
	ix.Insert(indexJourney("j-a", "Paris", "Algiers", day(10), 800))
	ix.Insert(indexJourney("j-d", "Paris", "Algiers", day(12), 700))
	ix.Insert(indexJourney("j-b", "Paris", "Algiers", day(10), 800))

	got := ids(ix.Search("Paris", "Algiers", day(1)))
	want := []string{"j-a", "j-b", "j-d", "j-c"}
	if !equalIDs(got, want) {
		t.Errorf("order = %v; want %v", got, want)
	}
}

func TestSearchDateFilter(t *testing.T) {
	ix := NewSearchIndex()
	ix.Insert(indexJourney("past", "Paris", "Algiers", day(5), 800))
	ix.Insert(indexJourney("boundary", "Paris", "Algiers", day(10), 800))
	ix.Insert(indexJourney("future", "Paris", "Algiers", day(15), 800))

	got := ids(ix.Search("Paris", "Algiers", day(10)))
	// "On or after" keeps the boundary date itself.
	want := []string{"boundary", "future"}
	if !equalIDs(got, want) {
		t.Errorf("results = %v; want %v", got, want)
	}
}

func TestSearchMatchesIntermediateStops(t *testing.T) {
	ix := NewSearchIndex()
	ix.Insert(indexJourney("j1", "Paris", "Algiers", day(10), 800, "Lyon", "Marseille"))

	cases := []struct {
		name     string
		from, to string
		want     bool
	}{
		{"full route", "Paris", "Algiers", true},
		{"board at origin, leave at stop", "Paris", "Lyon", true},
		{"stop to stop", "Lyon", "Marseille", true},
		{"stop to arrival", "Marseille", "Algiers", true},
		{"backwards leg", "Marseille", "Lyon", false},
		{"arrival is never a boarding point", "Algiers", "Paris", false},
		{"same city twice", "Lyon", "Lyon", false},
		{"unknown city", "Paris", "Berlin", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := len(ix.Search(tc.from, tc.to, day(1))) == 1
			if got != tc.want {
				t.Errorf("Search(%q, %q) matched = %v; want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestSearchCaseInsensitiveCities(t *testing.T) {
	ix := NewSearchIndex()
	ix.Insert(indexJourney("j1", "Paris", "Algiers", day(10), 800))

	if got := ix.Search("paris", "ALGIERS", day(1)); len(got) != 1 {
		t.Errorf("case-folded search returned %d results; want 1", len(got))
	}
}

func TestInsertRemoveIncremental(t *testing.T) {
	ix := NewSearchIndex()
	ix.Insert(indexJourney("j1", "Paris", "Algiers", day(10), 800))
	ix.Insert(indexJourney("j2", "Paris", "Algiers", day(11), 800))
	if ix.Len() != 2 {
		t.Fatalf("Len = %d; want 2", ix.Len())
	}

	ix.Remove("j1")
	if got := ids(ix.Search("Paris", "Algiers", day(1))); !equalIDs(got, []string{"j2"}) {
		t.Errorf("after remove results = %v; want [j2]", got)
	}

	// Unknown id is a no-op, not a panic.
	ix.Remove("missing")
	if ix.Len() != 1 {
		t.Errorf("Len = %d; want 1", ix.Len())
	}

	ix.Insert(indexJourney("j0", "Paris", "Algiers", day(9), 800))
	if got := ids(ix.Search("Paris", "Algiers", day(1))); !equalIDs(got, []string{"j0", "j2"}) {
		t.Errorf("after re-insert results = %v; want [j0 j2]", got)
	}
}

func TestSearchEmptyResultIsNotNil(t *testing.T) {
	ix := NewSearchIndex()
	if got := ix.Search("Paris", "Algiers", day(1)); got == nil || len(got) != 0 {
		t.Errorf("empty search = %v; want empty non-nil slice", got)
	}
}
