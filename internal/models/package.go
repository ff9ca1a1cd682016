package models

import "time"

// Package sizes.
const (
	SizeSmall  = "SMALL"
	SizeMedium = "MEDIUM"
	SizeLarge  = "LARGE"
)

// Package lifecycle states. Transitions between them are owned exclusively
// by the bookings service; nothing else writes Status.
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusInTransit = "IN_TRANSIT"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// MinPackageWeightKg is the enforced minimum shipment weight.
const MinPackageWeightKg = 15.0

// Package is a sender's cargo booked onto a journey. A cancelled package is
// kept as a CANCELLED row rather than deleted, so booking history survives.
type Package struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"sender_id"`
	Sender         *User     `json:"sender,omitempty"`
	JourneyID      string    `json:"journey_id"`
	SenderPhone    string    `json:"sender_phone"`
	RecipientPhone string    `json:"recipient_phone"`
	Size           string    `json:"size"`
	WeightKg       float64   `json:"weight_kg"`
	Contents       []string  `json:"contents"`
	Status         string    `json:"status"`
	TrackingNumber string    `json:"tracking_number"`
	PickupCode     string    `json:"pickup_code,omitempty"`
	DeliveryCode   string    `json:"delivery_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreatePackageRequest is the payload for booking a package onto a journey.
// The weight floor is checked in the service so it maps to ErrInvalidWeight.
type CreatePackageRequest struct {
	JourneyID      string   `json:"journey_id" validate:"required"`
	SenderPhone    string   `json:"sender_phone" validate:"required"`
	RecipientPhone string   `json:"recipient_phone" validate:"required"`
	Size           string   `json:"size" validate:"required,oneof=SMALL MEDIUM LARGE"`
	WeightKg       float64  `json:"weight_kg" validate:"required,gt=0"`
	Contents       []string `json:"contents" validate:"required,min=1,dive,required"`
}

// DeliverRequest optionally carries the recipient's delivery code. An empty
// code skips the check; a wrong one is rejected.
type DeliverRequest struct {
	DeliveryCode string `json:"delivery_code,omitempty"`
}

// DepartRequest lets a carrier force departure before the scheduled date.
type DepartRequest struct {
	Force bool `json:"force,omitempty"`
}

// PackageResponse pairs a package with its price, re-derived from journey
// and package state on every read so it can never drift from its inputs.
type PackageResponse struct {
	*Package
	PriceCents int64 `json:"price_cents"`
}

// DepartResponse reports how many packages left with the journey.
type DepartResponse struct {
	JourneyID string `json:"journey_id"`
	Departed  int    `json:"departed"`
}
