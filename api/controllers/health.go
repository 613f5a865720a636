package controllers

import (
	"net/http"

	"github.com/tundeajayi/storefront-backend/api/responses"
	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/db"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports each dependency individually so a failing probe names
// the broken backend.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP == nil {
			checks["database"] = "not configured"
			healthy = false
		} else if err := dbP.Ping(r.Context()); err != nil {
			if logg != nil {
				logg.Error(r.Context(), "database readiness probe failed", err)
			}
			checks["database"] = "unreachable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}

		if redisP == nil {
			checks["redis"] = "not configured"
			healthy = false
		} else if err := redisP.Ping(r.Context()); err != nil {
			if logg != nil {
				logg.Error(r.Context(), "redis readiness probe failed", err)
			}
			checks["redis"] = "unreachable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}

		status := http.StatusOK
		payload := map[string]any{"status": "ready", "checks": checks}
		if !healthy {
			status = http.StatusServiceUnavailable
			payload["status"] = "degraded"
		}
		responses.WriteSuccessStatus(w, status, payload)
	}
}
