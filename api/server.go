/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to
  handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestLogger: structured request logging via logrus
  4. CORS:       Cross-origin requests for the front

SECURITY NOTE:
  No authentication middleware. The X-Actor-ID header is trusted
  upstream input; see handlers.go.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Absence routes
		r.Route("/absences", func(r chi.Router) {
			r.Get("/", h.ListAbsences)
			r.Post("/", h.CreateAbsence)
			r.Get("/{id}", h.GetAbsence)
			r.Post("/{id}/validate", h.ValidateAbsence)
			r.Post("/{id}/refuse", h.RefuseAbsence)
			r.Post("/{id}/cancel", h.CancelAbsence)
			r.Post("/{id}/apply", h.ApplyAbsence)
			r.Put("/{id}/dates", h.UpdateAbsenceDates)
			r.Get("/{id}/history", h.GetAbsenceHistory)
		})

		// Planning feed
		r.Route("/planning", func(r chi.Router) {
			r.Get("/feed", h.PlanningFeed)
		})

		// Catalog routes
		r.Route("/catalogue", func(r chi.Router) {
			r.Get("/", h.ListCatalog)
			r.Post("/", h.CreateCatalogEntry)
			r.Get("/{id}", h.GetCatalogEntry)
			r.Put("/{id}", h.UpdateCatalogEntry)
		})

		// Directory routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/management-links", h.CreateManagementLink)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
		})
	})

	return r
}

// RequestLogger logs one structured line per request.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}
