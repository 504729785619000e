// Package service implements the portal's business logic: the seat ledger
// behind event registration and the reconciliation of volunteer application
// drafts with the content store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/cms"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/lock"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

// EventStore is the event collection of the content store.
type EventStore interface {
	GetEvent(ctx context.Context, documentID string) (*model.Event, error)
	ListEvents(ctx context.Context, state string) ([]model.Event, error)
	UpdateEventRegistration(ctx context.Context, documentID string, registrantIDs []int, seatsRemaining int) error
}

// IdentityResolver maps a principal to its content store user id.
type IdentityResolver interface {
	Resolve(ctx context.Context, p model.Principal) (int, error)
}

// Locker serialises registrations for one event across portal instances.
type Locker interface {
	Lock(ctx context.Context, key string) (lock.Lease, error)
}

// EventService orchestrates event reads and registrations.
type EventService struct {
	events   EventStore
	identity IdentityResolver
	locker   Locker
	logger   *slog.Logger
}

// NewEventService constructs an EventService. locker may be nil, in which
// case registration is an unsynchronised read-check-write.
func NewEventService(events EventStore, identity IdentityResolver, locker Locker, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		events:   events,
		identity: identity,
		locker:   locker,
		logger:   logger.With("component", "events"),
	}
}

// ListEvents returns the events that are open for registration.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.ListEvents(ctx, model.EventStateUpcoming)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns a single event by document id.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEventNotFound
	}
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if cms.IsNotFound(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// Register books a seat for the principal and returns the seats left.
//
// The content store offers no conditional update, so this is a plain
// read-check-write:
//
//	read event and registrants
//	reject unless upcoming and seats_remaining > 0
//	resolve the caller's store identity, reject duplicates
//	write registrants+caller and seats_remaining-1 in one request
//
// Two registrations racing between the read and the write both see the same
// counter and the later write wins: one registrant is lost and the counter
// is decremented once. With a Locker the whole sequence runs under a
// per-event lock, and a lock that expired before the write fails the
// registration with ErrRegistrationBusy.
func (s *EventService) Register(ctx context.Context, p model.Principal, eventID string) (int, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return 0, ErrEventNotFound
	}

	var lease lock.Lease
	if s.locker != nil {
		l, err := s.locker.Lock(ctx, "event:"+eventID)
		switch {
		case errors.Is(err, lock.ErrNotAcquired):
			return 0, ErrRegistrationBusy
		case err != nil && ctx.Err() != nil:
			return 0, ctx.Err()
		case err != nil:
			s.logger.Warn("registration lock unavailable, continuing unlocked", "event", eventID, "error", err)
		default:
			lease = l
			defer lease.Release()
		}
	}

	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if !event.IsOpen() {
		return 0, ErrEventNotOpen
	}
	if event.IsFull() {
		return 0, ErrFullyBooked
	}

	userID, err := s.identity.Resolve(ctx, p)
	if err != nil {
		return 0, err
	}
	if event.HasRegistrant(userID) {
		return 0, ErrAlreadyRegistered
	}

	if lease != nil {
		if err := lease.Check(ctx); errors.Is(err, lock.ErrLost) {
			s.logger.Warn("registration lock expired before write", "event", eventID)
			return 0, ErrRegistrationBusy
		} else if err != nil {
			s.logger.Warn("registration lock check failed, writing anyway", "event", eventID, "error", err)
		}
	}

	target := event.DocumentID
	if target == "" {
		target = eventID
	}
	registrants := append(event.RegistrantIDs(), userID)
	remaining := event.SeatsRemaining - 1
	if err := s.events.UpdateEventRegistration(ctx, target, registrants, remaining); err != nil {
		return 0, fmt.Errorf("register for event: %w", err)
	}

	s.logger.Info("registered for event",
		"event", target,
		"user_id", userID,
		"seats_remaining", remaining,
	)
	return remaining, nil
}
