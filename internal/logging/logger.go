// Package logging provides the structured logger used throughout the
// orchestration pipeline: one call signature, every component's events
// fielded the same way.
package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how log entries are written.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, file
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// StructuredLogger wraps a zap.Logger behind a small, stable call
// shape: Info/Error/Warning/Debug(operation, message, data).
type StructuredLogger struct {
	base      *zap.Logger
	run       string
	component string
}

// NewStructuredLogger builds a logger for the named run ("run", "backup",
// "sync", "list", "version", ...). component identifies the emitting
// subsystem and is attached to every entry.
func NewStructuredLogger(cfg Config, run, component string) *StructuredLogger {
	writer := SetupWriter(cfg)
	level := ParseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	base := zap.New(core).With(
		zap.String("service", "vbackup"),
		zap.String("run", run),
	)

	return &StructuredLogger{base: base, run: run, component: component}
}

// SetupWriter resolves the output sink. File output rotates through
// lumberjack the same way ipiton-alert-history-service's logger does.
func SetupWriter(cfg Config) zapcore.WriteSyncer {
	switch strings.ToLower(cfg.Output) {
	case "file":
		if cfg.Filename == "" {
			return zapcore.AddSync(os.Stdout)
		}
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		return zapcore.AddSync(os.Stdout)
	}
}

// ParseLevel parses a string log level to a zapcore.Level.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsValidLogLevel reports whether level names one of the four levels
// the CLI verbosity flags (spec §6) select between.
func IsValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warning", "warn", "error":
		return true
	default:
		return false
	}
}

func (sl *StructuredLogger) fields(operation string, data map[string]interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(data)+2)
	fields = append(fields, zap.String("component", sl.component), zap.String("operation", operation))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

func (sl *StructuredLogger) Info(operation, message string, data map[string]interface{}) {
	sl.base.Info(message, sl.fields(operation, data)...)
}

func (sl *StructuredLogger) Error(operation, message string, data map[string]interface{}) {
	sl.base.Error(message, sl.fields(operation, data)...)
}

func (sl *StructuredLogger) Warning(operation, message string, data map[string]interface{}) {
	sl.base.Warn(message, sl.fields(operation, data)...)
}

func (sl *StructuredLogger) Debug(operation, message string, data map[string]interface{}) {
	sl.base.Debug(message, sl.fields(operation, data)...)
}

// WithVolume returns a derived logger tagging every entry with a volume
// name, used once the executor starts driving a specific unit.
func (sl *StructuredLogger) WithVolume(volume string) *StructuredLogger {
	return &StructuredLogger{
		base:      sl.base.With(zap.String("volume", volume)),
		run:       sl.run,
		component: sl.component,
	}
}

// WithComponent returns a derived logger tagging entries under a
// different component name, e.g. the name of a concrete module.
func (sl *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return &StructuredLogger{base: sl.base, run: sl.run, component: component}
}

// WithRunID returns a derived logger tagging every entry with a
// correlation id, letting every log line and reporter event from one
// invocation be grepped together.
func (sl *StructuredLogger) WithRunID(runID string) *StructuredLogger {
	return &StructuredLogger{base: sl.base.With(zap.String("run_id", runID)), run: sl.run, component: sl.component}
}

// LogDuration logs the duration of an operation, mirroring the
// teacher's LogDuration helper.
func (sl *StructuredLogger) LogDuration(operation string, start time.Time, message string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	duration := time.Since(start)
	data["duration_ms"] = duration.Milliseconds()
	sl.Info(operation, fmt.Sprintf("%s (took %s)", message, duration), data)
}

// Sync flushes any buffered log entries; callers defer it in main.
func (sl *StructuredLogger) Sync() error {
	return sl.base.Sync()
}
