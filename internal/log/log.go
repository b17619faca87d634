// Package log constructs the process-wide zap logger. It is never a
// package-level global: New is called once in cmd/npcworld and the
// resulting *zap.SugaredLogger is threaded through constructors explicitly.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile zap logger. verbose lowers the level to
// Debug, matching the ops CLI's --verbose flag.
func New(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards all output, for tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
