package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/infrastructure/config"
)

var (
	ErrProfilingAddress = errors.New("profiling server address is required")
	ErrProfilingApp     = errors.New("profiling application name is required")
)

// Profiler pushes continuous profiles to Pyroscope. A disabled profiler is
// a no-op whose Shutdown returns nil.
type Profiler struct {
	signal
}

// NewProfiler starts the Pyroscope agent when telemetry.profiling_enabled is
// set. Mutex and block sampling are switched on only for the duration of
// the profiler.
func NewProfiler(cfg config.TelemetryConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{signal: signal{name: "profiles", logger: logger}}
	if !cfg.ProfilingEnabled {
		return p, nil
	}
	if cfg.ProfilingServerAddress == "" {
		return nil, ErrProfilingAddress
	}
	if cfg.ServiceName == "" {
		return nil, ErrProfilingApp
	}

	types := []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}
	if cfg.ProfilingMutexFraction > 0 {
		runtime.SetMutexProfileFraction(cfg.ProfilingMutexFraction)
		types = append(types, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration)
	}
	if cfg.ProfilingBlockRate > 0 {
		runtime.SetBlockProfileRate(cfg.ProfilingBlockRate)
		types = append(types, pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration)
	}

	agent, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ServiceName,
		ServerAddress:     cfg.ProfilingServerAddress,
		BasicAuthUser:     cfg.ProfilingBasicAuthUser,
		BasicAuthPassword: cfg.ProfilingBasicAuthPass,
		Logger:            agentLogger{logger.Sugar()},
		Tags:              hostTags(),
		ProfileTypes:      types,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}

	p.flush = func(context.Context) error {
		err := agent.Stop()
		runtime.SetMutexProfileFraction(0)
		runtime.SetBlockProfileRate(0)
		return err
	}
	logger.Info("continuous profiling enabled",
		zap.String("server_address", cfg.ProfilingServerAddress),
		zap.String("application", cfg.ServiceName),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

func hostTags() map[string]string {
	tags := map[string]string{}
	if host, err := os.Hostname(); err == nil {
		tags["hostname"] = host
	}
	if pod := os.Getenv("POD_NAME"); pod != "" {
		tags["pod"] = pod
	}
	return tags
}

// agentLogger routes the agent's own messages into zap at debug level,
// errors excepted.
type agentLogger struct {
	s *zap.SugaredLogger
}

func (l agentLogger) Infof(format string, args ...any)  { l.s.Debugf("pyroscope: "+format, args...) }
func (l agentLogger) Debugf(format string, args ...any) { l.s.Debugf("pyroscope: "+format, args...) }
func (l agentLogger) Errorf(format string, args ...any) { l.s.Errorf("pyroscope: "+format, args...) }
