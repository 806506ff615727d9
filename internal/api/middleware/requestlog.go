package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDHeader = "X-Request-ID"

// probePaths are logged only on state changes: the first success is logged,
// repeated successes are suppressed, failures are always logged at WARN.
// Probes fire every few seconds and would otherwise drown the log.
var probePaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
}

// RequestLog returns Echo middleware that logs requests with structured
// fields. It generates a request ID when none is provided and propagates it
// through the response header and echo context.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	var mu sync.Mutex
	probeOK := make(map[string]bool)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			c.Set("request_id", reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			err := next(c)

			path := c.Request().URL.Path
			status := c.Response().Status
			fields := []any{
				"method", c.Request().Method,
				"path", path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			}

			if _, probe := probePaths[path]; probe {
				ok := status >= 200 && status < 300
				mu.Lock()
				wasOK := probeOK[path]
				probeOK[path] = ok
				mu.Unlock()

				switch {
				case !ok:
					log.Warn("request", fields...)
				case !wasOK:
					log.Info("request", fields...)
				}
				return err
			}

			log.Info("request", fields...)

			return err
		}
	}
}
