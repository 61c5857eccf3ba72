package main

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"bmai-api/internal/auth"
	"bmai-api/internal/config"
	"bmai-api/internal/http/docs"
	"bmai-api/internal/http/handler"
	"bmai-api/internal/http/httperr"
	"bmai-api/internal/http/middleware"
	"bmai-api/internal/observability/logger"
	"bmai-api/internal/ratelimit"
	"bmai-api/internal/repo"
	"bmai-api/internal/session"
	"bmai-api/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const metricsTokenHeader = "X-Metrics-Token"

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds everything buildRouter needs. Nil handlers leave their
// routes unmounted.
type RouterDeps struct {
	Cfg         *config.Config
	Log         *logger.Logger
	Resolver    *auth.KeyResolver
	Sessions    *session.Manager
	RateLimiter *ratelimit.RedisRateLimiter
	Idempotency *repo.IdempotencyStore
	Metrics     *telemetry.Metrics
	Registry    *telemetry.Registry
	Pool        pinger
	Redis       *redis.Client

	// Handlers
	MeHandler             *handler.MeHandler
	ManualHandler         *handler.ManualHandler
	ServiceRequestHandler *handler.ServiceRequestHandler
	BuildingHandler       *handler.BuildingHandler
	UserHandler           *handler.UserHandler
	DebugHandler          *handler.DebugHandler
}

// buildRouter builds the chi.Router with every middleware and route.
func buildRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(deps.Log))
	r.Use(middleware.RecoveryMiddleware(deps.Log))
	r.Use(telemetry.OTelMiddleware(deps.Cfg.OTELServiceName))
	if deps.Metrics != nil {
		r.Use(telemetry.MetricsMiddleware(deps.Metrics))
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, `{"status":"ok"}`)
	})
	r.Get("/ready", readyHandler(deps))
	r.Get("/metrics", metricsHandler(deps))
	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)

	// Debug routes (dev-only)
	if deps.DebugHandler != nil && (deps.Cfg.AppEnv == "dev" || deps.Cfg.AppEnv == "development") {
		r.Route("/debug", func(r chi.Router) {
			r.With(auth.Middleware(deps.Resolver), middleware.SessionMiddleware(deps.Sessions)).
				Get("/session", deps.DebugHandler.GetSessionDebug)
			r.Get("/db/ping", deps.DebugHandler.PingDB)
		})
	}

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(deps.Resolver))
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(deps.RateLimiter, deps.Cfg.RateLimitPerPrincipalPerMin))
		}
		if deps.Idempotency != nil {
			r.Use(middleware.IdempotencyMiddleware(deps.Idempotency))
		}

		// sign-out must not open the session it is about to close
		if deps.MeHandler != nil {
			r.Delete("/me/session", deps.MeHandler.SignOut)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionMiddleware(deps.Sessions))

			r.Route("/me", func(r chi.Router) {
				if deps.MeHandler != nil {
					r.Get("/", deps.MeHandler.GetMe)
					r.Get("/buildings", deps.MeHandler.ListBuildings)
					r.Get("/selection", deps.MeHandler.GetSelection)
					r.Put("/selection", deps.MeHandler.Select)
					r.Post("/refresh", deps.MeHandler.Refresh)
				}

				if deps.ManualHandler != nil {
					r.Get("/buildings/{buildingId}/manuals", deps.ManualHandler.ListManuals)
					r.Get("/buildings/{buildingId}/search", deps.ManualHandler.Search)
					r.Get("/manuals/{manualId}/sections", deps.ManualHandler.ListSections)
				}

				if deps.ServiceRequestHandler != nil {
					r.Get("/buildings/{buildingId}/service-requests", deps.ServiceRequestHandler.List)
					r.Post("/buildings/{buildingId}/service-requests", deps.ServiceRequestHandler.Create)
					r.Route("/service-requests/{requestId}", func(r chi.Router) {
						r.Get("/", deps.ServiceRequestHandler.Get)
						r.Delete("/", deps.ServiceRequestHandler.Delete)
						r.Patch("/status", deps.ServiceRequestHandler.UpdateStatus)
						r.Get("/comments", deps.ServiceRequestHandler.ListComments)
						r.Post("/comments", deps.ServiceRequestHandler.AddComment)
					})
				}
			})

			if deps.BuildingHandler != nil {
				r.Route("/buildings", func(r chi.Router) {
					r.Get("/", deps.BuildingHandler.ListBuildings)
					r.Post("/", deps.BuildingHandler.CreateBuilding)
					r.Route("/{buildingId}", func(r chi.Router) {
						r.Get("/", deps.BuildingHandler.GetBuilding)
						r.Patch("/", deps.BuildingHandler.UpdateBuilding)
						r.Post("/archive", deps.BuildingHandler.ArchiveBuilding)
						r.Post("/restore", deps.BuildingHandler.RestoreBuilding)
					})
				})
			}

			if deps.UserHandler != nil {
				r.Route("/users", func(r chi.Router) {
					r.Post("/invite", deps.UserHandler.InviteUser)
					r.Route("/{userId}", func(r chi.Router) {
						r.Get("/", deps.UserHandler.GetUser)
						r.Put("/scope", deps.UserHandler.UpdateScope)
					})
				})
			}
		})
	})

	return r
}

func writeStatus(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// readyHandler pings Postgres and Redis. Missing dependencies are skipped so
// the router stays testable without them.
func readyHandler(deps RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if deps.Pool != nil {
			if err := deps.Pool.Ping(ctx); err != nil {
				deps.Log.Error(ctx, "readiness check failed: database unavailable", zap.Error(err))
				writeStatus(w, http.StatusServiceUnavailable, `{"status":"error","message":"database unavailable"}`)
				return
			}
		}

		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				deps.Log.Error(ctx, "readiness check failed: redis unavailable", zap.Error(err))
				writeStatus(w, http.StatusServiceUnavailable, `{"status":"error","message":"redis unavailable"}`)
				return
			}
		}

		writeStatus(w, http.StatusOK, `{"status":"ready"}`)
	}
}

// metricsHandler serves the Prometheus registry. When a metrics token is
// configured the request must carry it in X-Metrics-Token or as a bearer token.
func metricsHandler(deps RouterDeps) http.HandlerFunc {
	registry := deps.Registry
	if registry == nil {
		registry = telemetry.NewRegistry()
	}
	promHandler := registry.Handler()
	token := deps.Cfg.MetricsToken

	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			got := r.Header.Get(metricsTokenHeader)
			if got == "" {
				got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httperr.Unauthorized401(w, r.Context(), httperr.ErrCodeInvalidToken, "unauthorized")
				return
			}
		}
		promHandler.ServeHTTP(w, r)
	}
}
