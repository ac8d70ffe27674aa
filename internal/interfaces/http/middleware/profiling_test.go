package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

func TestProfiling_LabelsRoute(t *testing.T) {
	labels := map[string]string{}
	capture := func(c *gin.Context) {
		for _, key := range []string{telemetry.ProfileLabelMethod, telemetry.ProfileLabelRoute} {
			if v, ok := pprof.Label(c.Request.Context(), key); ok {
				labels[key] = v
			}
		}
		c.Status(http.StatusOK)
	}

	router := gin.New()
	router.Use(Profiling("/health"))
	router.GET("/orders/:id", capture)
	router.GET("/health", capture)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"method": "GET", "route": "/orders/:id"}, labels)

	clear(labels)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, labels)
}
