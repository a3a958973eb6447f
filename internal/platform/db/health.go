package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 5 * time.Second

// connSnapshot is the pool state reported by the health endpoint. Consent
// forms arrive in bursts when a ward rounds, so acquired-vs-max is the number
// operators actually watch.
type connSnapshot struct {
	Acquired int32 `json:"acquired"`
	Idle     int32 `json:"idle"`
	Max      int32 `json:"max"`
}

// healthPayload shapes the /health/db response for a given ping outcome.
func healthPayload(pingErr error, conns connSnapshot) (int, map[string]interface{}) {
	if pingErr != nil {
		return http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"error":  pingErr.Error(),
		}
	}
	return http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": conns,
	}
}

// HealthHandler reports whether the consent store is reachable.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		stat := pool.Stat()
		code, body := healthPayload(pool.Ping(ctx), connSnapshot{
			Acquired: stat.AcquiredConns(),
			Idle:     stat.IdleConns(),
			Max:      stat.MaxConns(),
		})
		return c.JSON(code, body)
	}
}
