// Package logging provides the gateway's structured logger: a zap core
// writing to a lumberjack-rotated file (and, when Config.Console is set,
// also to stdout), with a helper for deriving request-scoped loggers that carry a
// correlation ID field.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how the logger writes.
type Config struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      string
	Console    bool
}

// DefaultConfig returns sane local-development defaults.
func DefaultConfig() Config {
	return Config{
		FilePath:   "logs/gateway.log",
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 28,
		Compress:   true,
		Level:      "info",
		Console:    true,
	}
}

// Logger wraps a zap.Logger with a lifecycle hook.
type Logger struct {
	*zap.Logger
}

// New builds a Logger from cfg. Callers must call Close on shutdown to
// flush buffered entries.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileSink, level),
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}

	core := zapcore.NewTee(cores...)
	base := zap.New(core, zap.AddCaller())
	return &Logger{Logger: base}, nil
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.Logger.Sync()
}

// WithCorrelationID returns a child logger annotating every entry with the
// given correlation ID.
func (l *Logger) WithCorrelationID(id string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("correlation_id", id))}
}
