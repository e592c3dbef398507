package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/showtixhq/showtix-backend/api/responses"
	"github.com/showtixhq/showtix-backend/pkg/config"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ShowTix-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes each backing dependency within a bounded deadline.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ShowTix-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		probe := func(name string, p pinger) {
			if p == nil {
				checks[name] = "skipped"
				return
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "readiness probe failed: "+name, err)
				}
				return
			}
			checks[name] = "up"
		}

		probe("database", dbP)
		probe("redis", redisP)

		if !healthy {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
