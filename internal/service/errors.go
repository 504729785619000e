package service

import "errors"

// Registration business rule violations. Handlers map these to user-facing
// messages.
var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNotOpen      = errors.New("event is not available for registration")
	ErrFullyBooked       = errors.New("event is fully booked")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrRegistrationBusy  = errors.New("registration in progress for this event")
)
