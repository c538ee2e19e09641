package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLoggerKey struct{}

var defaultLogger *zap.Logger

func init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(lvl)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(l)
		}
	}
	var err error
	if defaultLogger, err = cfg.Build(); err != nil {
		defaultLogger = zap.NewNop()
	}
}

// Logger returns the logger carried by ctx, or the default logger
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return defaultLogger
}

// With returns a context whose logger has the additional key/value field
func With(ctx context.Context, key string, value interface{}) context.Context {
	return WithLogger(ctx, Logger(ctx).With(zap.Any(key, value)))
}

// WithLogger returns a context carrying the given logger
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// Fatal logs with the default logger and exits
func Fatal(msg string, fields ...zap.Field) {
	defaultLogger.Fatal(msg, fields...)
}
