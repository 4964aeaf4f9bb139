// Package logger builds the zap logger shared by every component.
package logger

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvProduction selects JSON friendly production defaults
const EnvProduction = "production"

// New creates the process logger. Entries go to stderr so the progress line
// owns stdout.
func New(serviceName, environment, logLevel, logFormat string) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	production := environment == EnvProduction
	cfg := zap.Config{
		Level:             level,
		Development:       !production,
		DisableStacktrace: !production && level.Level() > zapcore.DebugLevel,
		Encoding:          encoding(logFormat),
		EncoderConfig:     encoderConfig(production, logFormat),
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		InitialFields: map[string]any{
			"service": serviceName,
			"env":     environment,
		},
	}
	// no Sampling: every failed item must reach the log

	return cfg.Build()
}

func encoding(format string) string {
	if format == "json" {
		return "json"
	}
	return "console"
}

func encoderConfig(production bool, format string) zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	if production {
		enc = zap.NewProductionEncoderConfig()
	}
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	if encoding(format) == "console" {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return enc
}

// WithRun tags every entry with the run id.
func WithRun(logger *zap.Logger, runID uuid.UUID) *zap.Logger {
	if runID == uuid.Nil {
		return logger
	}
	return logger.With(zap.Stringer("run_id", runID))
}
