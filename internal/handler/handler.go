// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/cms"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/service"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/session"
)

const msgInternal = "Internal server error"

// EventHandler holds the HTTP handlers for events and registration.
type EventHandler struct {
	svc    *service.EventService
	logger *slog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{svc: svc, logger: logger.With("component", "http")}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Message: msg})
}

// writeUpstreamError surfaces a failed read from the content store: a 404
// stays a 404, anything else becomes a 500. The store's message is passed on
// when it gave one.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var cmsErr *cms.Error
	if !errors.As(err, &cmsErr) {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	status := http.StatusInternalServerError
	if cmsErr.Status == http.StatusNotFound {
		status = http.StatusNotFound
	}
	msg := cmsErr.Message
	if msg == "" {
		msg = msgInternal
	}
	writeError(w, status, msg)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// ListEvents handles GET /api/events
// Returns the events open for registration.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		h.logger.Error("list events failed", "error", err)
		writeUpstreamError(w, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		h.logger.Error("get event failed", "error", err)
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Register handles POST /api/events/{id}/register
// Books a seat for the signed-in member.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	left, err := h.svc.Register(r.Context(), p, id)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, service.ErrEventNotFound):
			writeError(w, http.StatusNotFound, "Event not found")
		case errors.Is(err, service.ErrEventNotOpen):
			writeError(w, http.StatusBadRequest, "Event is not available for registration")
		case errors.Is(err, service.ErrFullyBooked):
			writeError(w, http.StatusBadRequest, "Event is fully booked")
		case errors.Is(err, service.ErrAlreadyRegistered):
			writeError(w, http.StatusBadRequest, "You are already registered for this event")
		case errors.Is(err, service.ErrRegistrationBusy):
			writeError(w, http.StatusConflict, "Registration is busy, please try again")
		default:
			h.logger.Error("registration failed", "event", id, "user_id", p.ID, "error", err)
			writeUpstreamError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, model.RegisterResponse{
		Message:        "Successfully registered for the event",
		SeatsRemaining: left,
	})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
