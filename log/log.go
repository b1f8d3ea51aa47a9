// Package log provides the structured logger used across every IPPAN
// component. It wraps zap directly rather than a node-level logging
// facade: the consensus core has no dependency on any particular node
// runtime, so it owns its own thin interface over zap.Field.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured key-value pair attached to a log line.
type Field = zap.Field

// Field constructors re-exported so callers never import zap directly.
var (
	Field64    = zap.Int64
	FieldStr   = zap.String
	FieldUint  = zap.Uint64
	FieldBool  = zap.Bool
	FieldDur   = zap.Duration
)

// FieldAny attaches an arbitrary value under key.
func FieldAny(key string, value interface{}) Field {
	return zap.Any(key, value)
}

// ErrField attaches err under the conventional "error" key.
func ErrField(err error) Field {
	return zap.Error(err)
}

// Logger is the structured logging surface every package depends on.
// Component-scoped loggers are obtained via With, mirroring zap's
// SugaredLogger/Logger split without pulling a node-level dependency.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

type zapLogger struct {
	z *zap.Logger
}

// New returns a production JSON logger writing to stderr at level.
func New(level zapcore.Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Config above is static and always valid; fall back defensively
		// rather than let a logging failure take the node down.
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

// NewDevelopment returns a human-readable console logger, for local runs.
func NewDevelopment() Logger {
	z, err := zap.NewDevelopment()
	if err != nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...); os.Exit(1) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Sync() error { return l.z.Sync() }

type noOpLogger struct{}

// NoOp returns a Logger that discards everything, for tests and dry runs.
func NoOp() Logger { return noOpLogger{} }

func (noOpLogger) Debug(string, ...Field) {}
func (noOpLogger) Info(string, ...Field)  {}
func (noOpLogger) Warn(string, ...Field)  {}
func (noOpLogger) Error(string, ...Field) {}
func (noOpLogger) Fatal(string, ...Field) {}
func (noOpLogger) With(...Field) Logger   { return noOpLogger{} }
func (noOpLogger) Sync() error            { return nil }
