// Package model defines the core domain types of the foundation portal.
package model

import "time"

// EventStateUpcoming is the only lifecycle state that accepts registrations.
const EventStateUpcoming = "upcoming"

// Principal is the authenticated caller of a request.
// Token is the caller's own bearer token for the content store.
type Principal struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"-"`
}

// Member is a content store user as it appears in relations.
type Member struct {
	ID       int    `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Event is a foundation event that members can register for.
type Event struct {
	ID             int       `json:"id"`
	DocumentID     string    `json:"documentId"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug,omitempty"`
	State          string    `json:"state"`
	StartsAt       time.Time `json:"starts_at"`
	Location       string    `json:"location,omitempty"`
	Seats          int       `json:"seats"`
	SeatsRemaining int       `json:"seats_remaining"`
	Registrants    []Member  `json:"registrants,omitempty"`
}

// IsOpen reports whether the event accepts registrations at all.
func (e *Event) IsOpen() bool {
	return e.State == EventStateUpcoming
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.SeatsRemaining <= 0
}

// HasRegistrant reports whether the member id is already registered.
func (e *Event) HasRegistrant(id int) bool {
	for _, m := range e.Registrants {
		if m.ID == id {
			return true
		}
	}
	return false
}

// RegistrantIDs returns the ids of all current registrants in order.
func (e *Event) RegistrantIDs() []int {
	ids := make([]int, 0, len(e.Registrants))
	for _, m := range e.Registrants {
		ids = append(ids, m.ID)
	}
	return ids
}

// Consistent reports whether the seat counter agrees with the registrant list.
func (e *Event) Consistent() bool {
	return e.SeatsRemaining == e.Seats-len(e.Registrants)
}

// UploadedFile is a file descriptor minted by the content store.
type UploadedFile struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Mime      string    `json:"mime,omitempty"`
	Size      float64   `json:"size,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Draft is a partially filled volunteer application keyed by form field name.
type Draft map[string]any

// SaveOutcome records what happened to one draft save request.
type SaveOutcome struct {
	ID            string    `json:"id"`
	UserID        int       `json:"user_id"`
	Outcome       string    `json:"outcome"`
	DraftID       string    `json:"draft_id,omitempty"`
	FailedUploads []string  `json:"failed_uploads,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Message string `json:"message"`
}

// RegisterResponse is returned after a successful event registration.
type RegisterResponse struct {
	Message        string `json:"message"`
	SeatsRemaining int    `json:"seats_remaining"`
}

// DraftResponse is returned by the draft load endpoint.
type DraftResponse struct {
	Success bool   `json:"success"`
	Draft   Draft  `json:"draft"`
	Message string `json:"message,omitempty"`
}

// DraftSaveResponse is returned by the draft save endpoint.
type DraftSaveResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	DraftID       string   `json:"draftId,omitempty"`
	Outcome       string   `json:"outcome"`
	FailedUploads []string `json:"failedUploads"`
}

// DraftDeleteResponse is returned by the draft delete endpoint.
type DraftDeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
