package journeys

import (
	"context"
	"errors"
	"fmt"

	"shiplink/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for the journey repository.
type RepositoryInterface interface {
	CreateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, carrierID string) ([]*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error)
	// VehicleJourneyCount reports how many journeys reference the vehicle;
	// a referenced vehicle is immutable.
	VehicleJourneyCount(ctx context.Context, vehicleID string) (int, error)

	CreateJourney(ctx context.Context, j *models.Journey) (*models.Journey, error)
	FindJourneyByID(ctx context.Context, id string) (*models.Journey, error)
	ListByCarrier(ctx context.Context, carrierID string) ([]*models.Journey, error)
	// ListScheduled returns every SCHEDULED journey with vehicle, carrier
	// and stops attached; used to seed the search index at startup.
	ListScheduled(ctx context.Context) ([]*models.Journey, error)
	CancelJourney(ctx context.Context, journeyID, carrierID string) error
	CountActivePackages(ctx context.Context, journeyID string) (int, error)
	CancelPendingPackages(ctx context.Context, journeyID string) (int, error)
}

// Repository implements the RepositoryInterface on PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new journey repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

// CreateVehicle inserts a vehicle. A duplicate plate for the same carrier
// maps to models.ErrConflict.
func (r *Repository) CreateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	query := `
		INSERT INTO vehicles (carrier_id, license_plate, type, brand, capacity_kg, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, active, created_at`

	err := r.db.QueryRow(ctx, query, v.CarrierID, v.LicensePlate, v.Type, v.Brand, v.CapacityKg).
		Scan(&v.ID, &v.Active, &v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("repository.CreateVehicle: %w", err)
	}
	return v, nil
}

func (r *Repository) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	query := `
		SELECT id, carrier_id, license_plate, type, brand, capacity_kg, active, created_at
		FROM vehicles
		WHERE id = $1`

	var v models.Vehicle
	err := r.db.QueryRow(ctx, query, id).
		Scan(&v.ID, &v.CarrierID, &v.LicensePlate, &v.Type, &v.Brand, &v.CapacityKg, &v.Active, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindVehicleByID: %w", err)
	}
	return &v, nil
}

func (r *Repository) ListVehicles(ctx context.Context, carrierID string) ([]*models.Vehicle, error) {
	query := `
		SELECT id, carrier_id, license_plate, type, brand, capacity_kg, active, created_at
		FROM vehicles
		WHERE carrier_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, carrierID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListVehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.CarrierID, &v.LicensePlate, &v.Type, &v.Brand, &v.CapacityKg, &v.Active, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.ListVehicles.Scan: %w", err)
		}
		vehicles = append(vehicles, &v)
	}
	return vehicles, nil
}

func (r *Repository) UpdateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	query := `
		UPDATE vehicles
		SET license_plate = $1, type = $2, brand = $3, capacity_kg = $4, active = $5
		WHERE id = $6 AND carrier_id = $7
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, v.LicensePlate, v.Type, v.Brand, v.CapacityKg, v.Active, v.ID, v.CarrierID).
		Scan(&v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("repository.UpdateVehicle: %w", err)
	}
	return v, nil
}

func (r *Repository) VehicleJourneyCount(ctx context.Context, vehicleID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM journeys WHERE vehicle_id = $1", vehicleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.VehicleJourneyCount: %w", err)
	}
	return count, nil
}

// CreateJourney inserts the journey and its ordered stop points in one
// transaction.
func (r *Repository) CreateJourney(ctx context.Context, j *models.Journey) (*models.Journey, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateJourney.Begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO journeys (carrier_id, vehicle_id, departure_city, arrival_city, departure_date, collection_date, collection_address, price_per_kg, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, reserved_weight_kg, version, created_at`

	err = tx.QueryRow(ctx, query,
		j.CarrierID, j.VehicleID, j.DepartureCity, j.ArrivalCity,
		j.DepartureDate, j.CollectionDate, j.CollectionAddress,
		j.PricePerKg, j.Status,
	).Scan(&j.ID, &j.ReservedWeightKg, &j.Version, &j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateJourney: %w", err)
	}

	for i, sp := range j.StopPoints {
		_, err = tx.Exec(ctx,
			`INSERT INTO stop_points (journey_id, seq, city, address, collection_date) VALUES ($1, $2, $3, $4, $5)`,
			j.ID, i, sp.City, sp.Address, sp.CollectionDate,
		)
		if err != nil {
			return nil, fmt.Errorf("repository.CreateJourney.StopPoint: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.CreateJourney.Commit: %w", err)
	}
	return j, nil
}

const journeyColumns = `
	j.id, j.carrier_id, j.vehicle_id, j.departure_city, j.arrival_city,
	j.departure_date, j.collection_date, j.collection_address, j.price_per_kg,
	j.status, j.reserved_weight_kg, j.version, j.created_at,
	v.id, v.carrier_id, v.license_plate, v.type, v.brand, v.capacity_kg, v.active, v.created_at`

func scanJourney(row pgx.Row) (*models.Journey, error) {
	var j models.Journey
	var v models.Vehicle
	err := row.Scan(
		&j.ID, &j.CarrierID, &j.VehicleID, &j.DepartureCity, &j.ArrivalCity,
		&j.DepartureDate, &j.CollectionDate, &j.CollectionAddress, &j.PricePerKg,
		&j.Status, &j.ReservedWeightKg, &j.Version, &j.CreatedAt,
		&v.ID, &v.CarrierID, &v.LicensePlate, &v.Type, &v.Brand, &v.CapacityKg, &v.Active, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan journey: %w", err)
	}
	j.Vehicle = &v
	return &j, nil
}

func (r *Repository) loadStopPoints(ctx context.Context, j *models.Journey) error {
	rows, err := r.db.Query(ctx,
		`SELECT city, address, collection_date FROM stop_points WHERE journey_id = $1 ORDER BY seq`, j.ID)
	if err != nil {
		return fmt.Errorf("failed to load stop points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sp models.StopPoint
		if err := rows.Scan(&sp.City, &sp.Address, &sp.CollectionDate); err != nil {
			return fmt.Errorf("failed to scan stop point: %w", err)
		}
		j.StopPoints = append(j.StopPoints, sp)
	}
	return nil
}

// FindJourneyByID retrieves a journey with its vehicle and stop points.
func (r *Repository) FindJourneyByID(ctx context.Context, id string) (*models.Journey, error) {
	query := `
		SELECT ` + journeyColumns + `
		FROM journeys j
		JOIN vehicles v ON v.id = j.vehicle_id
		WHERE j.id = $1`

	j, err := scanJourney(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("repository.FindJourneyByID: %w", err)
	}
	if err := r.loadStopPoints(ctx, j); err != nil {
		return nil, fmt.Errorf("repository.FindJourneyByID: %w", err)
	}
	return j, nil
}

func (r *Repository) listJourneys(ctx context.Context, where string, args ...interface{}) ([]*models.Journey, error) {
	query := `
		SELECT ` + journeyColumns + `
		FROM journeys j
		JOIN vehicles v ON v.id = j.vehicle_id
		` + where + `
		ORDER BY j.departure_date, j.price_per_kg, j.id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journeys: %w", err)
	}
	defer rows.Close()

	var journeys []*models.Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}
		journeys = append(journeys, j)
	}
	for _, j := range journeys {
		if err := r.loadStopPoints(ctx, j); err != nil {
			return nil, err
		}
	}
	return journeys, nil
}

func (r *Repository) ListByCarrier(ctx context.Context, carrierID string) ([]*models.Journey, error) {
	journeys, err := r.listJourneys(ctx, "WHERE j.carrier_id = $1", carrierID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByCarrier: %w", err)
	}
	return journeys, nil
}

func (r *Repository) ListScheduled(ctx context.Context) ([]*models.Journey, error) {
	journeys, err := r.listJourneys(ctx, "WHERE j.status = 'SCHEDULED'")
	if err != nil {
		return nil, fmt.Errorf("repository.ListScheduled: %w", err)
	}
	return journeys, nil
}

// CancelJourney retires a SCHEDULED journey owned by the carrier. The
// statement itself re-checks that no package has committed weight, so an
// approval that landed between the caller's count and this update makes
// the cancellation lose with ErrConflict instead of stranding the package
// on a cancelled journey.
func (r *Repository) CancelJourney(ctx context.Context, journeyID, carrierID string) error {
	query := `
		UPDATE journeys
		SET status = 'CANCELLED'
		WHERE id = $1 AND carrier_id = $2 AND status = 'SCHEDULED'
		  AND NOT EXISTS (
			SELECT 1 FROM packages
			WHERE journey_id = $1 AND status IN ('APPROVED', 'IN_TRANSIT')
		  )`

	cmdTag, err := r.db.Exec(ctx, query, journeyID, carrierID)
	if err != nil {
		return fmt.Errorf("repository.CancelJourney: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

// CountActivePackages counts packages whose weight is committed against the
// journey's capacity.
func (r *Repository) CountActivePackages(ctx context.Context, journeyID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM packages WHERE journey_id = $1 AND status IN ('APPROVED', 'IN_TRANSIT')`,
		journeyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.CountActivePackages: %w", err)
	}
	return count, nil
}

// CancelPendingPackages cancels every PENDING package on a journey being
// retired, so no booking is silently deleted with it.
func (r *Repository) CancelPendingPackages(ctx context.Context, journeyID string) (int, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE packages SET status = 'CANCELLED', updated_at = NOW() WHERE journey_id = $1 AND status = 'PENDING'`,
		journeyID)
	if err != nil {
		return 0, fmt.Errorf("repository.CancelPendingPackages: %w", err)
	}
	return int(cmdTag.RowsAffected()), nil
}
