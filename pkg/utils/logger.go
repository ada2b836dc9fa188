package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
// Extra cores (for example the pipeline log stream) receive every entry as well.
func NewLogger(debug bool, extra ...zapcore.Core) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return logger, nil
	}
	return Tee(logger, extra...), nil
}

// Tee returns a copy of logger that also writes to the given cores.
func Tee(logger *zap.Logger, extra ...zapcore.Core) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(append([]zapcore.Core{c}, extra...)...)
	}))
}
