package models

import "time"

// Journey lifecycle. A SCHEDULED journey accepts bookings; it leaves the
// search index when it departs and is COMPLETED once every package on it
// has been delivered.
const (
	JourneyScheduled  = "SCHEDULED"
	JourneyInProgress = "IN_PROGRESS"
	JourneyCompleted  = "COMPLETED"
	JourneyCancelled  = "CANCELLED"
)

// DateFormat is the wire format for journey scheduling dates. Scheduling is
// calendar-date based and timezone-naive.
const DateFormat = "2006-01-02"

// Vehicle is a carrier-owned truck/van. It must not be modified once a
// published journey references it.
type Vehicle struct {
	ID           string    `json:"id"`
	CarrierID    string    `json:"carrier_id"`
	LicensePlate string    `json:"license_plate"` // unique per carrier
	Type         string    `json:"type"`
	Brand        string    `json:"brand"`
	CapacityKg   float64   `json:"capacity_kg"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// StopPoint is an intermediate city on a journey where cargo can be
// collected or dropped. Stops are ordered; their collection dates must be
// non-decreasing and fall between the journey's collection and departure
// dates.
type StopPoint struct {
	City           string    `json:"city"`
	Address        string    `json:"address"`
	CollectionDate time.Time `json:"collection_date"`
}

// Journey is a scheduled carrier trip from one city to another, optionally
// via stop points, with a cargo price rate in minor currency units per kg.
type Journey struct {
	ID                string      `json:"id"`
	CarrierID         string      `json:"carrier_id"`
	Carrier           *User       `json:"carrier,omitempty"`
	VehicleID         string      `json:"vehicle_id"`
	Vehicle           *Vehicle    `json:"vehicle,omitempty"`
	DepartureCity     string      `json:"departure_city"`
	ArrivalCity       string      `json:"arrival_city"`
	DepartureDate     time.Time   `json:"departure_date"`
	CollectionDate    time.Time   `json:"collection_date"`
	CollectionAddress string      `json:"collection_address"`
	StopPoints        []StopPoint `json:"stop_points,omitempty"`
	PricePerKg        int64       `json:"price_per_kg"` // minor units (cents) per kg
	Status            string      `json:"status"`

	// ReservedWeightKg is the weight committed against the vehicle's
	// capacity by APPROVED and IN_TRANSIT packages. Version guards
	// optimistic updates to it.
	ReservedWeightKg float64 `json:"reserved_weight_kg"`
	Version          int64   `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// RemainingCapacityKg is the weight the journey can still accept.
func (j *Journey) RemainingCapacityKg() float64 {
	if j.Vehicle == nil {
		return 0
	}
	return j.Vehicle.CapacityKg - j.ReservedWeightKg
}

// CreateVehicleRequest is the payload for registering a vehicle.
type CreateVehicleRequest struct {
	LicensePlate string  `json:"license_plate" validate:"required"`
	Type         string  `json:"type" validate:"required"`
	Brand        string  `json:"brand" validate:"required"`
	CapacityKg   float64 `json:"capacity_kg" validate:"required,gt=0"`
}

// StopPointRequest is one entry of a journey's ordered stop sequence.
type StopPointRequest struct {
	City           string `json:"city" validate:"required"`
	Address        string `json:"address" validate:"required"`
	CollectionDate string `json:"collection_date" validate:"required,datetime=2006-01-02"`
}

// CreateJourneyRequest is the payload for publishing a journey.
type CreateJourneyRequest struct {
	VehicleID         string             `json:"vehicle_id" validate:"required"`
	DepartureCity     string             `json:"departure_city" validate:"required"`
	ArrivalCity       string             `json:"arrival_city" validate:"required"`
	DepartureDate     string             `json:"departure_date" validate:"required,datetime=2006-01-02"`
	CollectionDate    string             `json:"collection_date" validate:"required,datetime=2006-01-02"`
	CollectionAddress string             `json:"collection_address" validate:"required"`
	StopPoints        []StopPointRequest `json:"stop_points,omitempty" validate:"omitempty,dive"`
	PricePerKg        int64              `json:"price_per_kg" validate:"required,gt=0"`
}
