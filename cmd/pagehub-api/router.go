package main

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"pagehub-api/internal/auth"
	"pagehub-api/internal/config"
	"pagehub-api/internal/http/docs"
	"pagehub-api/internal/http/handler"
	"pagehub-api/internal/http/middleware"
	"pagehub-api/internal/observability/logger"
	"pagehub-api/internal/ratelimit"
	"pagehub-api/internal/repo"
	"pagehub-api/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps contém as dependências necessárias para construir o router.
type RouterDeps struct {
	Cfg             *config.Config
	Log             *logger.Logger
	Resolver        *auth.KeyResolver
	IdempotencyRepo *repo.IdempotencyRepo
	RateLimiter     *ratelimit.RedisRateLimiter
	Metrics         *telemetry.Metrics
	Pool            *pgxpool.Pool // Necessário para readiness check e debug handler

	// Handlers
	PermissionHandler *handler.PermissionHandler
	DebugHandler      *handler.DebugHandler
}

// buildRouter constrói o chi.Router com todos os middlewares e rotas.
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
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)

	r.With(metricsAuth(deps.Cfg.MetricsToken)).Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Pool == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready","note":"pool is nil"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Pool.Ping(ctx); err != nil {
			deps.Log.Error(ctx, "readiness check failed: database unavailable", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"error","message":"database unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	// Debug routes (dev-only)
	if deps.Cfg.AppEnv == "dev" || deps.Cfg.AppEnv == "development" {
		r.Route("/debug", func(r chi.Router) {
			if deps.DebugHandler != nil {
				r.With(auth.JWTAuthMiddleware(deps.Resolver)).Get("/auth", deps.DebugHandler.GetAuthDebug)
				r.With(auth.JWTAuthMiddleware(deps.Resolver)).Get("/auth/workspaces/{workspaceId}", deps.DebugHandler.GetAuthDebugWithWorkspace)
				r.Get("/db/ping", deps.DebugHandler.PingDB)
			}
		})
	}

	// Protected routes with workspace isolation
	r.Route("/v1/workspaces/{workspaceId}", func(r chi.Router) {
		r.Use(auth.JWTAuthMiddleware(deps.Resolver))
		r.Use(middleware.WorkspaceMiddleware)
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(deps.RateLimiter, deps.Cfg.RateLimitPerWorkspacePerMin))
		}

		// Page permissions
		if deps.PermissionHandler != nil {
			r.Route("/pages/{pageId}", func(r chi.Router) {
				r.Get("/permissions", deps.PermissionHandler.ListPermissions)
				r.With(middleware.IdempotencyMiddleware(deps.IdempotencyRepo)).Post("/permissions", deps.PermissionHandler.SetPermission)
				r.With(middleware.IdempotencyMiddleware(deps.IdempotencyRepo)).Post("/permissions:bulk", deps.PermissionHandler.BulkSetPermissions)
				r.Get("/members", deps.PermissionHandler.ListMembers)
				r.Get("/effective-role", deps.PermissionHandler.GetEffectiveRole)
			})
		}
	})

	return r
}

// metricsAuth protege o /metrics com um token compartilhado quando
// configurado. Aceita X-Metrics-Token ou Authorization: Bearer.
func metricsAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Metrics-Token")
			if provided == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					provided = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
