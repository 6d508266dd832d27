/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. RequireOwner: Resolves the acting teacher from X-Owner-ID

OWNER RESOLUTION:
  Authentication lives in front of this service. The gateway forwards the
  authenticated teacher's id in the X-Owner-ID header; requests without it
  are rejected with 401. Handlers read the id from the request context.

ROUTE GROUPS:
  /api/students/*      Roster management
  /api/groups, /api/tags  Cohort labels
  /api/points/*        Ledger operations
  /api/rules/*         Rule templates
  /api/store/*         Points store and redemptions
  /api/calls/*         Random call-outs
  /api/demo/seed       Demo classroom loader

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type ctxKey int

const ownerKey ctxKey = 0

// ownerID returns the acting teacher's id resolved by RequireOwner.
func ownerID(r *http.Request) string {
	id, _ := r.Context().Value(ownerKey).(string)
	return id
}

// RequireOwner rejects requests without an X-Owner-ID header and stores
// the id in the request context.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Owner-ID")
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Missing X-Owner-ID header", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, id)))
	})
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Owner-ID"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireOwner)

		// Roster routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Delete("/{id}", h.ArchiveStudent)
			r.Get("/{id}/records", h.StudentRecords)
			r.Get("/{id}/verify", h.VerifyStudent)
		})
		r.Post("/groups", h.CreateGroup)
		r.Route("/tags", func(r chi.Router) {
			r.Post("/", h.CreateTag)
			r.Post("/{id}/students", h.TagStudent)
		})

		// Points routes
		r.Route("/points", func(r chi.Router) {
			r.Post("/apply", h.ApplyPoints)
			r.Post("/apply-batch", h.ApplyBatch)
			r.Post("/reset", h.ResetPoints)
			r.Get("/records", h.ListRecords)
		})

		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
		})

		// Store routes
		r.Route("/store", func(r chi.Router) {
			r.Get("/items", h.ListItems)
			r.Post("/items", h.CreateItem)
			r.Post("/redeem", h.Redeem)
			r.Get("/redemptions", h.ListRedemptions)
			r.Post("/redemptions/{id}/status", h.UpdateRedemptionStatus)
		})

		// Random call routes
		r.Route("/calls", func(r chi.Router) {
			r.Get("/", h.ListCalls)
			r.Post("/pick", h.PickStudent)
		})

		// Demo routes
		r.Post("/demo/seed", h.SeedDemo)
	})

	return r
}
