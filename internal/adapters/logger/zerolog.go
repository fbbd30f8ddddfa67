package logger

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// ZeroLogger implements the ports.Logger interface using zerolog.
// It emits structured JSON, which suits log aggregation better than the
// line-oriented StdLogger.
type ZeroLogger struct {
	logger zerolog.Logger
}

// NewZeroLogger creates a zerolog-backed logger writing JSON to w.
func NewZeroLogger(w io.Writer, level LogLevel) *ZeroLogger {
	zl := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZeroLogger{logger: zl}
}

func toZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func withFields(e *zerolog.Event, fields []map[string]interface{}) *zerolog.Event {
	if len(fields) > 0 && fields[0] != nil {
		e = e.Fields(fields[0])
	}
	return e
}

// Debug logs a message at Debug level.
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	withFields(l.logger.Debug(), fields).Msg(msg)
}

// Info logs a message at Info level.
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	withFields(l.logger.Info(), fields).Msg(msg)
}

// Warn logs a message at Warning level.
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	withFields(l.logger.Warn(), fields).Msg(msg)
}

// Error logs an error message at Error level.
func (l *ZeroLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	withFields(l.logger.Error().Err(err), fields).Msg(msg)
}
