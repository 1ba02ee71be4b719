package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// Logging writes a concise structured line for each HTTP request. Requests
// from authenticated users carry the user, so run starts and cancels are
// attributable from the log alone.
func Logging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			rid, _ := c.Get(ContextKeyRequestID).(string)
			user := ""
			if email, ok := c.Get(ContextKeyUserEmail).(string); ok && email != "" {
				user = " user=" + email
			}
			log.Printf("request_id=%s method=%s path=%s status=%d latency=%s%s", rid, c.Request().Method, c.Request().URL.Path, c.Response().Status, latency, user)

			return err
		}
	}
}
