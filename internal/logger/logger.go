package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

type contextKey string

const requestIDKey contextKey = "request_id"

// Init configures the global logger. format is "json" or "console";
// outputPath is "stdout", "stderr", or a file path.
func Init(level, format, outputPath string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if format == "json" {
		encoderConfig = zap.NewProductionEncoderConfig()
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var writer zapcore.WriteSyncer
	switch outputPath {
	case "stdout", "":
		writer = zapcore.AddSync(os.Stdout)
	case "stderr":
		writer = zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		writer = zapcore.AddSync(file)
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, writer, zapLevel)
	globalLogger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}

// Get returns the global logger. Init must have been called first.
func Get() *zap.Logger {
	if globalLogger == nil {
		panic("logger: not initialized, call Init() first")
	}
	return globalLogger
}

// WithRequestID attaches a request id to the context for later correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID extracts the request id from the context, if any.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithContext returns the global logger enriched with request-scoped fields.
func WithContext(ctx context.Context) *zap.Logger {
	log := Get()
	if id := RequestID(ctx); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	return log
}

func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { Get().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { Get().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }

func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

// Sync flushes buffered log entries.
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
