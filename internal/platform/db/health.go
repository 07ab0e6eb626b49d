package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// poolHealth is the payload of the database readiness endpoint. Busy
// versus idle counts are enough to spot connection leaks from a
// monitoring probe without exposing connection internals.
type poolHealth struct {
	Status    string `json:"status"`
	OpenConns int32  `json:"open_conns"`
	IdleConns int32  `json:"idle_conns"`
	BusyConns int32  `json:"busy_conns"`
	MaxConns  int32  `json:"max_conns"`
	PingMS    int64  `json:"ping_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthHandler reports whether the database answers a ping and how the
// connection pool is being used.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), connectTimeout)
		defer cancel()

		start := time.Now()
		pingErr := pool.Ping(ctx)

		stat := pool.Stat()
		h := poolHealth{
			Status:    "healthy",
			OpenConns: stat.TotalConns(),
			IdleConns: stat.IdleConns(),
			BusyConns: stat.AcquiredConns(),
			MaxConns:  stat.MaxConns(),
			PingMS:    time.Since(start).Milliseconds(),
		}

		if pingErr != nil {
			h.Status = "unhealthy"
			h.Error = pingErr.Error()
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}
