// Package logging constructs the zap.Logger threaded through every stage,
// replacing the teacher's bare log.Printf calls with structured logging —
// grounded on other_examples' go-coffee tracker.go, which wires a
// *zap.Logger into its Tracker and logs structured fields on every tick.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger at the given level ("debug", "info", "warn",
// "error"), using the production encoder config but console output —
// matching the verbosity control the teacher exposes via its -verbose
// flag, generalized to zap's level enum (SPEC_FULL.md §6 expansion).
func New(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return cfg.Build()
}
