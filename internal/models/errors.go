package models

import "errors"

var ErrNotFound = errors.New("requested resource not found")
var ErrUnauthorized = errors.New("actor is not allowed to perform this action")
var ErrConflict = errors.New("resource conflict, item already exists")
var ErrInvalidCredentials = errors.New("invalid credentials") // email or password provided does not match database record

// ErrInvalidWeight indicates that the package weight is below the 15kg
// carrier minimum or above what the journey's vehicle can still take.
var ErrInvalidWeight = errors.New("package weight outside the accepted range")

// ErrCapacityExceeded indicates the journey's vehicle has no remaining
// capacity for the requested weight.
var ErrCapacityExceeded = errors.New("journey capacity exceeded")

// ErrInvalidTransition indicates a booking state change that is not part of
// the package lifecycle graph (e.g. delivering a package twice).
var ErrInvalidTransition = errors.New("invalid booking state transition")

// ErrInvalidScore indicates a review score outside the 1..5 range.
var ErrInvalidScore = errors.New("review score must be between 1 and 5")

// ErrInvalidSchedule indicates journey dates that break the required order:
// every stop date must fall between the collection date and the departure
// date, non-decreasing along the stop sequence.
var ErrInvalidSchedule = errors.New("journey dates out of order")

// ErrorResponse is the JSON body returned for every rejected request.
type ErrorResponse struct {
	Message string `json:"message"`
}
