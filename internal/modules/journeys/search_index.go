package journeys

import (
	"sort"
	"strings"
	"sync"
	"time"

	"shiplink/internal/models"
)

// SearchIndex answers "journeys from A to B on or after date D" queries
// from memory. Entries are kept sorted by (departureDate, pricePerKg, id)
// so results come out in their final order without a per-query sort, and
// inserts/removals are incremental; there is never a full rebuild after
// seeding. The database stays the source of truth; the index is repopulated
// from it at startup.
type SearchIndex struct {
	mu      sync.RWMutex
	entries []*models.Journey
}

func NewSearchIndex() *SearchIndex {
	return &SearchIndex{}
}

func indexLess(a, b *models.Journey) bool {
	if !a.DepartureDate.Equal(b.DepartureDate) {
		return a.DepartureDate.Before(b.DepartureDate)
	}
	if a.PricePerKg != b.PricePerKg {
		return a.PricePerKg < b.PricePerKg
	}
	return a.ID < b.ID
}

// Insert adds a journey at its sorted position.
func (ix *SearchIndex) Insert(j *models.Journey) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	pos := sort.Search(len(ix.entries), func(i int) bool {
		return !indexLess(ix.entries[i], j)
	})
	ix.entries = append(ix.entries, nil)
	copy(ix.entries[pos+1:], ix.entries[pos:])
	ix.entries[pos] = j
}

// Remove drops a journey from the index. Removing an id that is not indexed
// is a no-op.
func (ix *SearchIndex) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, e := range ix.entries {
		if e.ID == id {
			ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
			return
		}
	}
}

// Len reports how many journeys are indexed.
func (ix *SearchIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search returns journeys matching the leg in (departureDate, pricePerKg,
// id) order. A journey matches when fromCity is its departure city or any
// stop city, and toCity is its arrival city or a stop strictly after the
// boarding point. An empty result is not an error.
func (ix *SearchIndex) Search(fromCity, toCity string, onOrAfter time.Time) []*models.Journey {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	start := sort.Search(len(ix.entries), func(i int) bool {
		return !ix.entries[i].DepartureDate.Before(onOrAfter)
	})

	results := []*models.Journey{}
	for _, j := range ix.entries[start:] {
		if matchesLeg(j, fromCity, toCity) {
			results = append(results, j)
		}
	}
	return results
}

// matchesLeg locates the boarding point for fromCity (position 0 is the
// departure city, stop i is position i+1) and requires toCity at a strictly
// later position or at the arrival city.
func matchesLeg(j *models.Journey, fromCity, toCity string) bool {
	boarding := -1
	if strings.EqualFold(j.DepartureCity, fromCity) {
		boarding = 0
	} else {
		for i, sp := range j.StopPoints {
			if strings.EqualFold(sp.City, fromCity) {
				boarding = i + 1
				break
			}
		}
	}
	if boarding < 0 {
		return false
	}

	if strings.EqualFold(j.ArrivalCity, toCity) {
		return true
	}
	// Stop i sits at position i+1; i >= boarding keeps only later stops.
	for i := boarding; i < len(j.StopPoints); i++ {
		if strings.EqualFold(j.StopPoints[i].City, toCity) {
			return true
		}
	}
	return false
}
