// Package logging builds the zap loggers used across prreview.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger at the given level (an unparseable
// level falls back to info), using console encoding when format is
// "console" instead of "json".
func New(level string, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Sync flushes a logger, ignoring the common "sync /dev/stderr" error that
// zap returns on stdout/stderr targets.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}

// Task returns a logger scoped to a task: every line it writes carries the
// task_id field.
func Task(logger *zap.Logger, taskID string) *zap.Logger {
	return logger.With(zap.String("task_id", taskID))
}
