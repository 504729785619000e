package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/service"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/session"
)

// Deps is everything the router needs.
type Deps struct {
	Events     *service.EventService
	Drafts     *service.DraftService
	Sessions   *session.Verifier
	CORSOrigin string
	Logger     *slog.Logger
}

// NewRouter builds the portal API router.
func NewRouter(d Deps) http.Handler {
	eventHandler := NewEventHandler(d.Events, d.Logger)
	draftHandler := NewDraftHandler(d.Drafts, d.Logger)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(d.Logger))        // structured access log
	r.Use(CORS(d.CORSOrigin))
	r.Use(d.Sessions.Middleware) // principal on the context when a valid token is sent

	// Health
	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", eventHandler.ListEvents)
		r.Get("/events/{id}", eventHandler.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(session.RequireSession)
			r.Post("/events/{id}/register", eventHandler.Register)

			r.Get("/volunteer/draft", draftHandler.Get)
			r.Post("/volunteer/draft", draftHandler.Save)
			r.Delete("/volunteer/draft", draftHandler.Delete)
		})
	})

	return r
}
