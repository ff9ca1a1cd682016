package models

import "time"

// User roles. A user holds exactly one role at a time; carrier-only data
// (preferred routes, special rates) lives on the same record as optional
// fields rather than a subtype, so an account can plausibly switch roles
// without a schema migration.
const (
	RoleCarrier = "CARRIER"
	RoleSender  = "SENDER"
)

// User represents an account on the platform, either a carrier offering
// transport capacity or a sender shipping packages.
type User struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Rating       float64   `json:"rating"`       // derived, 0..5
	ReviewCount  int       `json:"review_count"` // derived, >= 0
	ProfileImage *string   `json:"profile_image,omitempty"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Carrier-only fields.
	PreferredRoutes []string           `json:"preferred_routes,omitempty"` // "CityA - CityB" strings
	SpecialRates    map[string]float64 `json:"special_rates,omitempty"`    // content category -> price multiplier
}

// Review is a rating left by one user for another after a delivery.
type Review struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	ReviewedID string    `json:"reviewed_id"`
	Score      int       `json:"score"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RatingSummary is returned after a review is recorded.
type RatingSummary struct {
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=CARRIER SENDER"`
}

// LoginRequest is the payload for password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the signed token and the authenticated user.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// ReviewRequest is the payload for recording a review. Score bounds are
// checked in the service so an out-of-range value maps to ErrInvalidScore
// rather than a generic validation failure.
type ReviewRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}
