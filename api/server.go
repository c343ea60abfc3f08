/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends
  5. Auth:       Bearer JWT on everything under /api

ROUTE GROUPS:
  /healthz              Liveness, no auth
  /api/bookings/*       Booking lifecycle
  /api/sessions/*       Attendance
  /api/accounts/*       Wallet and ledger
  /api/tutors/*         Tutor directory and slots
  /api/admin/*          Policy and expiry sweep
  /api/scenarios/*      Demo data

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/booking-engine/booking"
)

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator, cfg RouterConfig) *chi.Mux {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		// Booking routes
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
			r.Get("/{id}/sessions", h.GetSessions)
			r.Post("/{id}/approve", h.ApproveBooking)
			r.Post("/{id}/reject", h.RejectBooking)
			r.Post("/{id}/cancel", h.CancelBooking)
			r.Post("/{id}/finish", h.FinishBooking)
			r.Post("/{id}/report", h.ReportBooking)
		})

		// Session routes
		r.Post("/sessions/{id}/attendance", h.MarkAttendance)

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.OpenAccount)
			r.Get("/{id}", h.GetAccount)
			r.Post("/{id}/topup", h.TopUp)
			r.Post("/{id}/withdraw", h.Withdraw)
			r.Get("/{id}/entries", h.GetEntries)
			r.Get("/{id}/reconcile", h.Reconcile)
		})

		// Tutor routes
		r.Route("/tutors", func(r chi.Router) {
			r.Post("/", h.RegisterTutor)
			r.Get("/{id}", h.GetTutor)
			r.Get("/{id}/slots", h.ListSlots)
			r.Post("/{id}/slots", h.AddSlot)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(booking.RoleAdmin))
			r.Get("/policy", h.GetPolicy)
			r.Get("/sweep", h.GetSweep)
			r.Post("/sweep", h.RunSweep)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
