package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminRequests observes every admin request once: it records the request
// metrics under the daemon's name and logs the outcome. Probe routes that
// succeed log at trace so polling does not flood debug output.
func AdminRequests(name string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := routeOf(c)
		status := c.Writer.Status()
		RecordHTTPRequest(name, c.Request.Method, route, status, elapsed)

		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		case isProbe(route):
			event = logger.Trace()
		default:
			event = logger.Debug()
		}
		event.
			Str("daemon", name).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Str("remote", c.ClientIP()).
			Msg("admin: request")
	}
}

// routeOf prefers the registered pattern so unmatched paths do not create
// unbounded label values.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func isProbe(route string) bool {
	return route == "/health" || route == "/ready"
}
