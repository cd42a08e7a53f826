package controllers

import (
	"net/http"

	"github.com/davidmarceau/groupline-backend/api/responses"
	"github.com/davidmarceau/groupline-backend/pkg/config"
	"github.com/davidmarceau/groupline-backend/pkg/db"
	pkgerrors "github.com/davidmarceau/groupline-backend/pkg/errors"
	"github.com/davidmarceau/groupline-backend/pkg/logger"
	"github.com/davidmarceau/groupline-backend/pkg/redis"
)

const envHeader = "X-Groupline-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the datasources so load balancers only route traffic when
// the service can actually serve it.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
