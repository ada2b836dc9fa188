package utils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(true) returned nil logger")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(false) returned nil logger")
		}
		_ = logger.Sync()
	})

	t.Run("extra cores receive entries", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		logger, err := NewLogger(false, core)
		if err != nil {
			t.Fatalf("NewLogger error: %v", err)
		}
		logger.Info("stage started", zap.String("stage", "extract"))
		if logs.Len() != 1 {
			t.Fatalf("expected 1 mirrored entry, got %d", logs.Len())
		}
		if logs.All()[0].Message != "stage started" {
			t.Errorf("message = %q", logs.All()[0].Message)
		}
	})
}

func TestTee(t *testing.T) {
	base, baseLogs := observer.New(zapcore.DebugLevel)
	extra, extraLogs := observer.New(zapcore.WarnLevel)
	logger := Tee(zap.New(base), extra)

	logger.Debug("quiet")
	logger.Warn("loud")

	if baseLogs.Len() != 2 {
		t.Errorf("base core should see both entries, got %d", baseLogs.Len())
	}
	if extraLogs.Len() != 1 {
		t.Errorf("extra core should only see warn entries, got %d", extraLogs.Len())
	}
}
