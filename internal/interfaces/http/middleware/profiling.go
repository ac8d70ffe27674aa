package middleware

import (
	"context"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// Profiling labels the request's goroutine with its method and route
// pattern, so profiles can be cut per endpoint. Requests to skipPaths and
// unmatched routes are left unlabelled.
func Profiling(skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || slices.Contains(skipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}
		telemetry.Profiled(c.Request.Context(), map[string]string{
			telemetry.ProfileLabelMethod: c.Request.Method,
			telemetry.ProfileLabelRoute:  route,
		}, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
