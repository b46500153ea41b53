package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "donation-ledger"

type Logger struct {
	Logger *zap.Logger
}

// New builds a JSON logger when appEnv is "production" and a colored console logger otherwise.
// Every entry carries the service name.
func New(appEnv string) *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if appEnv == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	z, err := cfg.Build(zap.AddCallerSkip(1), zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: z}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

type ctxKey string

var (
	RequestIdKey ctxKey = "request_id"
	UserIdKey    ctxKey = "user_id"
)

var contextKeys = []ctxKey{RequestIdKey, UserIdKey}

// WithContext returns the zap logger with the request id and caller id found in ctx attached.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.Logger
	}
	fields := make([]zap.Field, 0, len(contextKeys))
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	return l.Logger.With(fields...)
}

// Sugar satisfies stripe.LeveledLoggerInterface for the Stripe backend.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.Logger.Sugar()
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.Logger.Sugar().Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.Logger.Sugar().Warnf(template, args...)
}

func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}
