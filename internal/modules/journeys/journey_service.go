package journeys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shiplink/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// searchCacheTTL bounds how stale a cached search response can be. Search
// is a read-only snapshot and tolerates lag; bookings always go through the
// strongly consistent path.
const searchCacheTTL = 30 * time.Second

// ServiceInterface defines the contract for the journey service.
type ServiceInterface interface {
	CreateVehicle(ctx context.Context, carrierID string, req models.CreateVehicleRequest) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, carrierID string) ([]*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, carrierID, vehicleID string, req models.CreateVehicleRequest) (*models.Vehicle, error)
	CreateJourney(ctx context.Context, carrierID string, req models.CreateJourneyRequest) (*models.Journey, error)
	Search(ctx context.Context, fromCity, toCity, dateStr string) ([]*models.Journey, error)
	ListMine(ctx context.Context, carrierID string) ([]*models.Journey, error)
	Retire(ctx context.Context, journeyID, carrierID string) error
}

// Service implements journey publication, fleet management and search.
type Service struct {
	repo  RepositoryInterface
	index *SearchIndex
	cache *redis.Client // optional; nil disables response caching
	log   *logrus.Logger
}

// NewService creates a new journey service.
func NewService(repo RepositoryInterface, index *SearchIndex, cache *redis.Client, log *logrus.Logger) *Service {
	return &Service{repo: repo, index: index, cache: cache, log: log}
}

// SeedIndex fills the search index from the database at startup.
func (s *Service) SeedIndex(ctx context.Context) error {
	journeys, err := s.repo.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("service.SeedIndex: %w", err)
	}
	for _, j := range journeys {
		s.index.Insert(j)
	}
	s.log.WithField("journeys", len(journeys)).Info("search index seeded")
	return nil
}

// CreateVehicle registers a vehicle for the carrier.
func (s *Service) CreateVehicle(ctx context.Context, carrierID string, req models.CreateVehicleRequest) (*models.Vehicle, error) {
	v := &models.Vehicle{
		CarrierID:    carrierID,
		LicensePlate: req.LicensePlate,
		Type:         req.Type,
		Brand:        req.Brand,
		CapacityKg:   req.CapacityKg,
	}
	created, err := s.repo.CreateVehicle(ctx, v)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("service.CreateVehicle: %w", err)
	}
	return created, nil
}

// ListVehicles returns the carrier's fleet.
func (s *Service) ListVehicles(ctx context.Context, carrierID string) ([]*models.Vehicle, error) {
	return s.repo.ListVehicles(ctx, carrierID)
}

// UpdateVehicle edits a vehicle that no journey references yet. Once a
// published journey points at the vehicle its capacity backs that journey's
// booking invariant, so it is frozen.
func (s *Service) UpdateVehicle(ctx context.Context, carrierID, vehicleID string, req models.CreateVehicleRequest) (*models.Vehicle, error) {
	existing, err := s.repo.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if existing.CarrierID != carrierID {
		return nil, models.ErrNotFound
	}

	count, err := s.repo.VehicleJourneyCount(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("service.UpdateVehicle: %w", err)
	}
	if count > 0 {
		return nil, models.ErrConflict
	}

	existing.LicensePlate = req.LicensePlate
	existing.Type = req.Type
	existing.Brand = req.Brand
	existing.CapacityKg = req.CapacityKg
	return s.repo.UpdateVehicle(ctx, existing)
}

// CreateJourney validates the schedule and publishes the journey into both
// the database and the search index.
func (s *Service) CreateJourney(ctx context.Context, carrierID string, req models.CreateJourneyRequest) (*models.Journey, error) {
	vehicle, err := s.repo.FindVehicleByID(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.CarrierID != carrierID {
		return nil, models.ErrUnauthorized
	}
	if !vehicle.Active {
		return nil, models.ErrConflict
	}

	departureDate, err := time.Parse(models.DateFormat, req.DepartureDate)
	if err != nil {
		return nil, models.ErrInvalidSchedule
	}
	collectionDate, err := time.Parse(models.DateFormat, req.CollectionDate)
	if err != nil {
		return nil, models.ErrInvalidSchedule
	}
	if departureDate.Before(collectionDate) {
		return nil, models.ErrInvalidSchedule
	}

	stops := make([]models.StopPoint, 0, len(req.StopPoints))
	prev := collectionDate
	for _, sp := range req.StopPoints {
		d, err := time.Parse(models.DateFormat, sp.CollectionDate)
		if err != nil {
			return nil, models.ErrInvalidSchedule
		}
		// Stop dates run non-decreasing from the collection date and never
		// past departure, in sequence order.
		if d.Before(prev) || d.After(departureDate) {
			return nil, models.ErrInvalidSchedule
		}
		prev = d
		stops = append(stops, models.StopPoint{City: sp.City, Address: sp.Address, CollectionDate: d})
	}

	j := &models.Journey{
		CarrierID:         carrierID,
		VehicleID:         vehicle.ID,
		Vehicle:           vehicle,
		DepartureCity:     req.DepartureCity,
		ArrivalCity:       req.ArrivalCity,
		DepartureDate:     departureDate,
		CollectionDate:    collectionDate,
		CollectionAddress: req.CollectionAddress,
		StopPoints:        stops,
		PricePerKg:        req.PricePerKg,
		Status:            models.JourneyScheduled,
	}
	created, err := s.repo.CreateJourney(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("service.CreateJourney: %w", err)
	}

	s.index.Insert(created)
	return created, nil
}

func searchCacheKey(fromCity, toCity string, date time.Time) string {
	return fmt.Sprintf("search:%s:%s:%s",
		strings.ToLower(fromCity), strings.ToLower(toCity), date.Format(models.DateFormat))
}

// Search answers a from/to/date query from the cache or the index. An empty
// date means "from today". Results are ordered by departure date, then
// price per kg, then id.
func (s *Service) Search(ctx context.Context, fromCity, toCity, dateStr string) ([]*models.Journey, error) {
	onOrAfter := time.Now().UTC().Truncate(24 * time.Hour)
	if dateStr != "" {
		parsed, err := time.Parse(models.DateFormat, dateStr)
		if err != nil {
			return nil, models.ErrInvalidSchedule
		}
		onOrAfter = parsed
	}

	key := searchCacheKey(fromCity, toCity, onOrAfter)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var journeys []*models.Journey
			if err := json.Unmarshal(cached, &journeys); err == nil {
				return journeys, nil
			}
		}
	}

	journeys := s.index.Search(fromCity, toCity, onOrAfter)

	if s.cache != nil {
		if payload, err := json.Marshal(journeys); err == nil {
			if err := s.cache.Set(ctx, key, payload, searchCacheTTL).Err(); err != nil {
				s.log.WithError(err).Warn("failed to cache search response")
			}
		}
	}
	return journeys, nil
}

// ListMine returns the carrier's own journeys.
func (s *Service) ListMine(ctx context.Context, carrierID string) ([]*models.Journey, error) {
	return s.repo.ListByCarrier(ctx, carrierID)
}

// Retire cancels a journey that has no committed cargo. Pending bookings on
// it are cancelled, not deleted, so their history stays visible to senders.
// Every rejection happens before the first write; a rejected retirement
// touches nothing.
func (s *Service) Retire(ctx context.Context, journeyID, carrierID string) error {
	journey, err := s.repo.FindJourneyByID(ctx, journeyID)
	if err != nil {
		return err
	}
	if journey.CarrierID != carrierID {
		return models.ErrUnauthorized
	}
	if journey.Status != models.JourneyScheduled {
		return models.ErrConflict
	}

	active, err := s.repo.CountActivePackages(ctx, journeyID)
	if err != nil {
		return fmt.Errorf("service.Retire: %w", err)
	}
	if active > 0 {
		return models.ErrConflict
	}

	// Cancel the journey before its packages. Once it leaves SCHEDULED no
	// approval can reserve capacity any more, and the guarded update
	// refuses if one slipped in after the count above.
	if err := s.repo.CancelJourney(ctx, journeyID, carrierID); err != nil {
		return err
	}

	cancelled, err := s.repo.CancelPendingPackages(ctx, journeyID)
	if err != nil {
		return fmt.Errorf("service.Retire: %w", err)
	}
	if cancelled > 0 {
		s.log.WithFields(logrus.Fields{"journey": journeyID, "cancelled": cancelled}).Info("pending bookings cancelled with journey")
	}

	s.index.Remove(journeyID)
	return nil
}
