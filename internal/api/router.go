package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vaxpoint/vaccine-scheduler/internal/identity"
	"github.com/vaxpoint/vaccine-scheduler/internal/session"
)

type RouterConfig struct {
	Handlers *Handlers
	Sessions session.Store
	PgPool   *pgxpool.Pool // optional, health checks only
	Redis    *redis.Client // optional, health checks only
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	h := cfg.Handlers

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Account endpoints, no session required
	r.Post("/patients", h.registerHandler(identity.KindPatient))
	r.Post("/caregivers", h.registerHandler(identity.KindCaregiver))
	r.Post("/patients/login", h.loginHandler(identity.KindPatient))
	r.Post("/caregivers/login", h.loginHandler(identity.KindCaregiver))

	// Everything else runs as exactly one logged-in participant
	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.Sessions))

		r.Post("/logout", h.logoutHandler)
		r.Get("/schedule/{date}", h.scheduleHandler)
		r.Post("/availabilities", h.uploadAvailabilityHandler)
		r.Post("/reservations", h.reserveHandler)
		r.Delete("/appointments/{id}", h.cancelHandler)
		r.Get("/appointments", h.appointmentsHandler)
		r.Post("/vaccines/{name}/doses", h.addDosesHandler)
	})

	return r
}
