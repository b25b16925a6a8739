// Package log is a thin zap facade with context-scoped fields.
package log

import (
	"context"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Field = zap.Field

var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Float64  = zap.Float64
	Duration = zap.Duration
	Any      = zap.Any
	Time     = zap.Time
)

// Cause records the error that caused the event being logged.
func Cause(err error) Field {
	return zap.Error(err)
}

// Config controls the process-wide logger.
type Config struct {
	Debug    bool   `conf:"debug" yaml:"debug" json:"debug"`
	Encoding string `conf:"encoding" yaml:"encoding" json:"encoding"`
}

// Logger wraps a zap.Logger so callers never import zap directly.
type Logger struct {
	*zap.Logger
}

func New(cfg Config) *Logger {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if encoding == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)

	return &Logger{Logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(Config{}))
}

// SetDefault replaces the process-wide logger used by the package-level functions.
func SetDefault(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

func Default() *Logger {
	return defaultLogger.Load()
}

type fieldsKey struct{}

// WithFields attaches fields to the context; every log call made with the
// returned context carries them.
func WithFields(ctx context.Context, fields ...Field) context.Context {
	return context.WithValue(ctx, fieldsKey{}, append(fieldsFrom(ctx), fields...))
}

func fieldsFrom(ctx context.Context) []Field {
	fields, _ := ctx.Value(fieldsKey{}).([]Field)
	return fields
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	Default().Debug(msg, append(fieldsFrom(ctx), fields...)...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	Default().Info(msg, append(fieldsFrom(ctx), fields...)...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	Default().Warn(msg, append(fieldsFrom(ctx), fields...)...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	Default().Error(msg, append(fieldsFrom(ctx), fields...)...)
}
