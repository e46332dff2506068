// Package logger provides a context-aware structured logger backed by zap.
package logger

import (
	"context"
	"os"

	sqldblogger "github.com/simukti/sqldb-logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a logger that supports log levels, context and structured logging.
type Logger interface {
	// With returns a logger based off the root logger and decorates it with
	// the given context and arguments.
	With(ctx context.Context, args ...interface{}) Logger

	// Debug uses fmt.Sprint to construct and log a message at DEBUG level.
	Debug(args ...interface{})
	// Info uses fmt.Sprint to construct and log a message at INFO level.
	Info(args ...interface{})
	// Warn uses fmt.Sprint to construct and log a message at WARN level.
	Warn(args ...interface{})
	// Error uses fmt.Sprint to construct and log a message at ERROR level.
	Error(args ...interface{})

	// Debugf uses fmt.Sprintf to construct and log a message at DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof uses fmt.Sprintf to construct and log a message at INFO level.
	Infof(format string, args ...interface{})
	// Warnf uses fmt.Sprintf to construct and log a message at WARN level.
	Warnf(format string, args ...interface{})
	// Errorf uses fmt.Sprintf to construct and log a message at ERROR level.
	Errorf(format string, args ...interface{})

	// Sync flushes any buffered log entries.
	Sync() error

	// Log implements sqldblogger.Logger so the logger can be the sink
	// for database query logs.
	Log(ctx context.Context, level sqldblogger.Level, msg string, data map[string]interface{})
}

type logger struct {
	*zap.SugaredLogger
}

type contextKey int

const (
	requestIDKey contextKey = iota
	correlationIDKey
)

var _ Logger = (*logger)(nil)

// Options configure the root logger.
type Options struct {
	// Level name such as "debug" or "warn"; info when empty or unknown.
	Level string
	// Path of the log file; no file is written when empty.
	Path string
	// Rotation limits of the log file.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a new logger using the given options.
// Entries go to stdout and, if a path is set, to a rotated file.
func New(opts Options) Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Level != "" {
		if l, err := zapcore.ParseLevel(opts.Level); err == nil {
			level.SetLevel(l)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}

	if opts.Path != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			file,
			level,
		))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	return NewWithZap(l)
}

// NewWithZap creates a new logger using the preconfigured zap logger.
func NewWithZap(l *zap.Logger) Logger {
	return &logger{l.Sugar()}
}

// NewForTest returns a new logger and the corresponding observed logs
// which can be used in unit tests to verify log entries.
func NewForTest() (Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewWithZap(zap.New(core)), recorded
}

// With returns a logger based off the root logger and decorates it with
// the given context and arguments.
//
// If the context contains request ID and/or correlation ID information
// (recorded via WithRequestID()), they will be added to every log message
// generated by the new logger.
//
// The arguments should be specified as a sequence of name, value pairs with names being strings.
// The arguments will also be added to every log message generated by the logger.
func (l *logger) With(ctx context.Context, args ...interface{}) Logger {
	if ctx != nil {
		if id, ok := ctx.Value(requestIDKey).(string); ok {
			args = append(args, zap.String("request_id", id))
		}
		if id, ok := ctx.Value(correlationIDKey).(string); ok {
			args = append(args, zap.String("correlation_id", id))
		}
	}
	if len(args) > 0 {
		return &logger{l.SugaredLogger.With(args...)}
	}
	return l
}

// Log writes a database query log entry at the matching zap level.
func (l *logger) Log(ctx context.Context, level sqldblogger.Level, msg string, data map[string]interface{}) {
	args := make([]interface{}, 0, len(data)*2)
	for k, v := range data {
		args = append(args, k, v)
	}

	sugared := l.With(ctx).(*logger).SugaredLogger

	switch level {
	case sqldblogger.LevelError:
		sugared.Errorw(msg, args...)
	case sqldblogger.LevelInfo:
		sugared.Infow(msg, args...)
	default:
		sugared.Debugw(msg, args...)
	}
}

// WithRequestID returns a context which knows the request ID and correlation ID in the given request.
func WithRequestID(ctx context.Context, requestID, correlationID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	if correlationID != "" {
		ctx = context.WithValue(ctx, correlationIDKey, correlationID)
	}
	return ctx
}

// RequestID returns the request ID stored in ctx, if any.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}
