package controllers

import (
	"net/http"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/pkg/config"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
	"github.com/troopfundraiser/frclient/pkg/redis"
)

const envHeader = "X-FR-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks Redis, which holds every session.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisClient redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").
					WithDetails(map[string]string{"redis": "unavailable"}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
