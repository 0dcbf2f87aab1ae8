// Package log provides the logging interface used throughout the pipeline,
// entry, and transport packages. The interface shape is deliberately small
// — Debug/Error/Crit plus a With for structured tags — with go.uber.org/zap
// doing the actual formatting and sink work underneath.
package log

import "go.uber.org/zap"

// Root is the process-wide default logger. Replace it at startup (e.g. from
// config) before any package-level logger falls back to it.
var Root Logger = NewZap(zap.NewNop())

// Logger is the logging interface. The variadic arguments are key-value
// pairs; the key must be a string and the value should have a meaningful
// string representation.
type Logger interface {
	Debug(string, ...interface{})
	Error(string, ...interface{})
	Crit(string, ...interface{})
	With(...interface{}) Logger
}

// zapLogger backs Logger with a *zap.SugaredLogger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZap wraps z as a Logger.
func NewZap(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Debug(m string, kv ...interface{}) { l.s.Debugw(m, kv...) }
func (l *zapLogger) Error(m string, kv ...interface{}) { l.s.Errorw(m, kv...) }
func (l *zapLogger) Crit(m string, kv ...interface{})  { l.s.Fatalw(m, kv...) }
func (l *zapLogger) With(kv ...interface{}) Logger {
	return &zapLogger{s: l.s.With(kv...)}
}

// NewProduction returns a Logger backed by zap's production configuration
// (JSON output, info level, caller and stacktrace on error).
func NewProduction() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZap(z), nil
}

// NewDevelopment returns a Logger backed by zap's development configuration
// (console output, debug level).
func NewDevelopment() (Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return NewZap(z), nil
}
