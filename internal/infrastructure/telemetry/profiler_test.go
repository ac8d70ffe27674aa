package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

func TestNewProfiler(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := telemetry.NewProfiler(config.TelemetryConfig{ServiceName: "storefront"}, zap.NewNop())
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("requires a server address", func(t *testing.T) {
		_, err := telemetry.NewProfiler(config.TelemetryConfig{
			ProfilingEnabled: true,
			ServiceName:      "storefront",
		}, zap.NewNop())
		assert.ErrorIs(t, err, telemetry.ErrProfilingAddress)
	})

	t.Run("requires an application name", func(t *testing.T) {
		_, err := telemetry.NewProfiler(config.TelemetryConfig{
			ProfilingEnabled:       true,
			ProfilingServerAddress: "http://localhost:4040",
		}, zap.NewNop())
		assert.ErrorIs(t, err, telemetry.ErrProfilingApp)
	})
}

func TestTracerProvider_SpanProfilesNeedTracing(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), config.TelemetryConfig{ServiceName: "storefront"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.EnableSpanProfiles())
}

func labelsOf(ctx context.Context) map[string]string {
	got := map[string]string{}
	pprof.ForLabels(ctx, func(k, v string) bool {
		got[k] = v
		return true
	})
	return got
}

func TestProfiled(t *testing.T) {
	t.Run("attaches labels", func(t *testing.T) {
		var got map[string]string
		telemetry.Profiled(context.Background(), map[string]string{
			telemetry.ProfileLabelMethod: "POST",
			telemetry.ProfileLabelRoute:  "/api/v1/checkout",
		}, func(ctx context.Context) { got = labelsOf(ctx) })

		assert.Equal(t, map[string]string{"method": "POST", "route": "/api/v1/checkout"}, got)
	})

	t.Run("drops unbounded keys and empty values", func(t *testing.T) {
		var got map[string]string
		telemetry.Profiled(context.Background(), map[string]string{
			"user_id":                       "0d6f2a4e",
			"order_id":                      "9b1c",
			telemetry.ProfileLabelOperation: "",
			telemetry.ProfileLabelMethod:    "GET",
		}, func(ctx context.Context) { got = labelsOf(ctx) })

		assert.Equal(t, map[string]string{"method": "GET"}, got)
	})

	t.Run("truncates long values", func(t *testing.T) {
		var route string
		telemetry.Profiled(context.Background(), map[string]string{
			telemetry.ProfileLabelRoute: "/" + strings.Repeat("x", 300),
		}, func(ctx context.Context) { route, _ = pprof.Label(ctx, telemetry.ProfileLabelRoute) })

		assert.Len(t, route, 128)
	})

	t.Run("runs fn without labels", func(t *testing.T) {
		ran := false
		telemetry.Profiled(context.Background(), nil, func(ctx context.Context) {
			ran = true
			assert.Empty(t, labelsOf(ctx))
		})
		assert.True(t, ran)
	})
}

func TestProfileOperation_InnerReplacesOuter(t *testing.T) {
	var outer, inner string
	telemetry.ProfileOperation(context.Background(), "checkout", func(ctx context.Context) {
		outer, _ = pprof.Label(ctx, telemetry.ProfileLabelOperation)
		telemetry.ProfileOperation(ctx, "checkout.commit", func(ctx context.Context) {
			inner, _ = pprof.Label(ctx, telemetry.ProfileLabelOperation)
		})
	})
	assert.Equal(t, "checkout", outer)
	assert.Equal(t, "checkout.commit", inner)
}
