package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type registrarFunc func(rg *gin.RouterGroup)

func (f registrarFunc) RegisterRoutes(rg *gin.RouterGroup) { f(rg) }

func pong(path string) RouteRegistrar {
	return registrarFunc(func(rg *gin.RouterGroup) {
		rg.GET(path, func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
	})
}

func denyAll(c *gin.Context) {
	c.AbortWithStatus(http.StatusUnauthorized)
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Equal(t, "/api/v1", r.BasePath())
	assert.Empty(t, r.public)
	assert.Empty(t, r.protected)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, WithAuth(denyAll)).
		Public(pong("/health")).
		Protected(pong("/cart")).
		Setup()

	t.Run("public route skips auth", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pong", w.Body.String())
	})

	t.Run("protected route runs auth", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/cart")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unversioned path is not mounted", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/cart")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouterSetup_NoAuth(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).Protected(pong("/orders")).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/orders")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewEngine(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	engine, err := NewEngine(EngineConfig{
		Logger: zap.NewNop(),
		HTTP: config.HTTPConfig{
			CORSAllowOrigins: []string{"https://shop.example"},
			CORSAllowMethods: []string{"GET"},
		},
		MaxBodyBytes: 1 << 20,
		Meter:        meter,
	})
	require.NoError(t, err)

	NewRouter(engine).Public(pong("/health")).Setup()

	t.Run("request id and security headers", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
		req.Header.Set("Origin", "https://shop.example")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("panic is recovered", func(t *testing.T) {
		engine.GET("/boom", func(c *gin.Context) { panic("boom") })
		w := serve(engine, http.MethodGet, "/boom")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
