package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

var gormLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
	"debug":  gormlogger.Info,
}

// MapGormLogLevel maps log.gorm_mode onto a gorm level; unknown names mean warn
func MapGormLogLevel(level string) gormlogger.LogLevel {
	if l, ok := gormLevels[level]; ok {
		return l
	}
	return gormlogger.Warn
}

// GormLogger writes gorm's statement log to zap, tagged with the request and
// user found in the statement context. Record-not-found stays quiet unless
// WithRecordNotFound is given, since cart reconciliation hits it routinely.
type GormLogger struct {
	zl           *zap.Logger
	level        gormlogger.LogLevel
	slow         time.Duration
	showNotFound bool
}

type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets when a statement counts as slow; zero turns the warning off
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slow = d }
}

func WithRecordNotFound() GormLoggerOption {
	return func(l *GormLogger) { l.showNotFound = true }
}

func NewGormLogger(base *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{zl: base.Named("gorm"), level: level, slow: defaultSlowQuery}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Info, l.zl.Sugar().Infof, msg, args)
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Warn, l.zl.Sugar().Warnf, msg, args)
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Error, l.zl.Sugar().Errorf, msg, args)
}

func (l *GormLogger) printf(at gormlogger.LogLevel, emit func(string, ...any), msg string, args []any) {
	if l.level >= at {
		emit(msg, args...)
	}
}

// Trace logs one executed statement: errors at error, slow statements at
// warn, the rest at debug when the level is info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case l.level <= gormlogger.Silent:
	case err != nil:
		if l.level < gormlogger.Error || (errors.Is(err, gormlogger.ErrRecordNotFound) && !l.showNotFound) {
			return
		}
		l.zl.Error("SQL Error", append(statement(ctx, elapsed, fc), zap.Error(err))...)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		l.zl.Warn("Slow SQL", append(statement(ctx, elapsed, fc), zap.Duration("threshold", l.slow))...)
	case l.level >= gormlogger.Info:
		l.zl.Debug("SQL Query", statement(ctx, elapsed, fc)...)
	}
}

func statement(ctx context.Context, elapsed time.Duration, fc func() (string, int64)) []zap.Field {
	sql, rows := fc()
	fields := make([]zap.Field, 0, 5)
	fields = append(fields, zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetUserID(ctx); id != "" {
		fields = append(fields, zap.String("user_id", id))
	}
	return fields
}
