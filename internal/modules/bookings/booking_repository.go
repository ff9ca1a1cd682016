package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shiplink/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for the booking repository.
// Status updates are guarded by the expected current status, so a write
// that lost a race affects zero rows instead of clobbering state.
type RepositoryInterface interface {
	CreatePackage(ctx context.Context, p *models.Package) (*models.Package, error)
	FindByID(ctx context.Context, packageID string) (*models.Package, error)
	ListBySender(ctx context.Context, senderID string, page, limit int) ([]*models.Package, int, error)
	ListByJourneyAndStatus(ctx context.Context, journeyID, status string) ([]*models.Package, error)
	CountByJourneyAndStatus(ctx context.Context, journeyID, status string) (int, error)
	UpdateStatus(ctx context.Context, packageID, from, to string) error
	UpdateStatusByJourney(ctx context.Context, journeyID, from, to string) (int, error)

	// GetJourney loads the journey with its vehicle and carrier, including
	// the carrier's special rates, for pricing and capacity checks.
	GetJourney(ctx context.Context, journeyID string) (*models.Journey, error)
	// ReserveCapacity commits weight against the journey's capacity under an
	// optimistic version guard; zero rows affected means the reservation
	// lost to a concurrent writer or would exceed capacity.
	ReserveCapacity(ctx context.Context, journeyID string, weightKg float64, version int64) error
	ReleaseCapacity(ctx context.Context, journeyID string, weightKg float64) error
	SetJourneyStatus(ctx context.Context, journeyID, from, to string) error
}

// Repository implements the RepositoryInterface on PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new booking repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const packageColumns = `
	p.id, p.sender_id, p.journey_id, p.sender_phone, p.recipient_phone,
	p.size, p.weight_kg, p.contents, p.status, p.tracking_number,
	p.pickup_code, p.delivery_code, p.created_at, p.updated_at,
	u.id, u.name, u.email, u.phone`

func scanPackage(row pgx.Row) (*models.Package, error) {
	var p models.Package
	var sender models.User
	err := row.Scan(
		&p.ID, &p.SenderID, &p.JourneyID, &p.SenderPhone, &p.RecipientPhone,
		&p.Size, &p.WeightKg, &p.Contents, &p.Status, &p.TrackingNumber,
		&p.PickupCode, &p.DeliveryCode, &p.CreatedAt, &p.UpdatedAt,
		&sender.ID, &sender.Name, &sender.Email, &sender.Phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan package: %w", err)
	}
	p.Sender = &sender
	return &p, nil
}

// CreatePackage inserts a new PENDING package.
func (r *Repository) CreatePackage(ctx context.Context, p *models.Package) (*models.Package, error) {
	query := `
		INSERT INTO packages (sender_id, journey_id, sender_phone, recipient_phone, size, weight_kg, contents, status, tracking_number, pickup_code, delivery_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING', $8, $9, $10)
		RETURNING id, status, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.SenderID, p.JourneyID, p.SenderPhone, p.RecipientPhone,
		p.Size, p.WeightKg, p.Contents, p.TrackingNumber, p.PickupCode, p.DeliveryCode,
	).Scan(&p.ID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository.CreatePackage: %w", err)
	}
	return p, nil
}

// FindByID retrieves a package with its sender attached.
func (r *Repository) FindByID(ctx context.Context, packageID string) (*models.Package, error) {
	query := `
		SELECT ` + packageColumns + `
		FROM packages p
		JOIN users u ON u.id = p.sender_id
		WHERE p.id = $1`

	p, err := scanPackage(r.db.QueryRow(ctx, query, packageID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return p, nil
}

// ListBySender retrieves a sender's packages with pagination.
func (r *Repository) ListBySender(ctx context.Context, senderID string, page, limit int) ([]*models.Package, int, error) {
	offset := (page - 1) * limit
	query := `
		SELECT ` + packageColumns + `
		FROM packages p
		JOIN users u ON u.id = p.sender_id
		WHERE p.sender_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, senderID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListBySender.Query: %w", err)
	}
	defer rows.Close()

	var packages []*models.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListBySender: %w", err)
		}
		packages = append(packages, p)
	}

	var total int
	err = r.db.QueryRow(ctx, "SELECT COUNT(*) FROM packages WHERE sender_id = $1", senderID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListBySender.Count: %w", err)
	}
	return packages, total, nil
}

// ListByJourneyAndStatus retrieves all packages on a journey in a state.
func (r *Repository) ListByJourneyAndStatus(ctx context.Context, journeyID, status string) ([]*models.Package, error) {
	query := `
		SELECT ` + packageColumns + `
		FROM packages p
		JOIN users u ON u.id = p.sender_id
		WHERE p.journey_id = $1 AND p.status = $2
		ORDER BY p.created_at`

	rows, err := r.db.Query(ctx, query, journeyID, status)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByJourneyAndStatus: %w", err)
	}
	defer rows.Close()

	var packages []*models.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListByJourneyAndStatus: %w", err)
		}
		packages = append(packages, p)
	}
	return packages, nil
}

func (r *Repository) CountByJourneyAndStatus(ctx context.Context, journeyID, status string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM packages WHERE journey_id = $1 AND status = $2",
		journeyID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.CountByJourneyAndStatus: %w", err)
	}
	return count, nil
}

// UpdateStatus moves a package from one state to another. A package that is
// no longer in the expected state affects zero rows and maps to
// models.ErrInvalidTransition.
func (r *Repository) UpdateStatus(ctx context.Context, packageID, from, to string) error {
	query := `
		UPDATE packages
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	cmdTag, err := r.db.Exec(ctx, query, to, packageID, from)
	if err != nil {
		return fmt.Errorf("repository.UpdateStatus: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

// UpdateStatusByJourney transitions every package on a journey in the given
// state, returning how many moved.
func (r *Repository) UpdateStatusByJourney(ctx context.Context, journeyID, from, to string) (int, error) {
	query := `
		UPDATE packages
		SET status = $1, updated_at = NOW()
		WHERE journey_id = $2 AND status = $3`

	cmdTag, err := r.db.Exec(ctx, query, to, journeyID, from)
	if err != nil {
		return 0, fmt.Errorf("repository.UpdateStatusByJourney: %w", err)
	}
	return int(cmdTag.RowsAffected()), nil
}

// GetJourney loads the journey joined with its vehicle and carrier.
func (r *Repository) GetJourney(ctx context.Context, journeyID string) (*models.Journey, error) {
	query := `
		SELECT j.id, j.carrier_id, j.vehicle_id, j.departure_city, j.arrival_city,
		       j.departure_date, j.collection_date, j.collection_address, j.price_per_kg,
		       j.status, j.reserved_weight_kg, j.version, j.created_at,
		       v.id, v.carrier_id, v.license_plate, v.type, v.brand, v.capacity_kg, v.active, v.created_at,
		       u.id, u.name, u.email, u.phone, u.rating, u.review_count, u.special_rates
		FROM journeys j
		JOIN vehicles v ON v.id = j.vehicle_id
		JOIN users u ON u.id = j.carrier_id
		WHERE j.id = $1`

	var j models.Journey
	var v models.Vehicle
	var carrier models.User
	var rates []byte
	err := r.db.QueryRow(ctx, query, journeyID).Scan(
		&j.ID, &j.CarrierID, &j.VehicleID, &j.DepartureCity, &j.ArrivalCity,
		&j.DepartureDate, &j.CollectionDate, &j.CollectionAddress, &j.PricePerKg,
		&j.Status, &j.ReservedWeightKg, &j.Version, &j.CreatedAt,
		&v.ID, &v.CarrierID, &v.LicensePlate, &v.Type, &v.Brand, &v.CapacityKg, &v.Active, &v.CreatedAt,
		&carrier.ID, &carrier.Name, &carrier.Email, &carrier.Phone, &carrier.Rating, &carrier.ReviewCount, &rates,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.GetJourney: %w", err)
	}
	if len(rates) > 0 {
		if err := json.Unmarshal(rates, &carrier.SpecialRates); err != nil {
			return nil, fmt.Errorf("repository.GetJourney: failed to decode special rates: %w", err)
		}
	}
	j.Vehicle = &v
	j.Carrier = &carrier
	return &j, nil
}

// ReserveCapacity commits weight against the journey under the version
// guard. Zero rows affected means the version moved, the journey left
// SCHEDULED, or the vehicle's capacity would be exceeded; the caller
// reports CapacityExceeded.
func (r *Repository) ReserveCapacity(ctx context.Context, journeyID string, weightKg float64, version int64) error {
	query := `
		UPDATE journeys j
		SET reserved_weight_kg = j.reserved_weight_kg + $1, version = j.version + 1
		FROM vehicles v
		WHERE j.id = $2 AND j.version = $3
		  AND j.status = 'SCHEDULED'
		  AND v.id = j.vehicle_id
		  AND j.reserved_weight_kg + $1 <= v.capacity_kg`

	cmdTag, err := r.db.Exec(ctx, query, weightKg, journeyID, version)
	if err != nil {
		return fmt.Errorf("repository.ReserveCapacity: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrCapacityExceeded
	}
	return nil
}

// ReleaseCapacity returns weight to the journey after a cancellation.
func (r *Repository) ReleaseCapacity(ctx context.Context, journeyID string, weightKg float64) error {
	query := `
		UPDATE journeys
		SET reserved_weight_kg = GREATEST(reserved_weight_kg - $1, 0), version = version + 1
		WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, query, weightKg, journeyID)
	if err != nil {
		return fmt.Errorf("repository.ReleaseCapacity: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetJourneyStatus moves the journey itself through its lifecycle.
func (r *Repository) SetJourneyStatus(ctx context.Context, journeyID, from, to string) error {
	query := `UPDATE journeys SET status = $1 WHERE id = $2 AND status = $3`

	cmdTag, err := r.db.Exec(ctx, query, to, journeyID, from)
	if err != nil {
		return fmt.Errorf("repository.SetJourneyStatus: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}
