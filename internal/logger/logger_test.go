package logger

import (
	"errors"
	"log/slog"
	"testing"
)

func TestNew(t *testing.T) {
	config := &Config{
		Level:  slog.LevelDebug,
		Format: "json",
	}

	logger := New(config)
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	if logger.Logger == nil {
		t.Fatal("Expected internal slog.Logger to be set")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Level != slog.LevelInfo {
		t.Errorf("Expected default level Info, got %v", config.Level)
	}

	if config.Format != "json" {
		t.Errorf("Expected default format json, got %s", config.Format)
	}

	if config.AddSource {
		t.Error("Expected AddSource to be false by default")
	}
}

func TestWithField(t *testing.T) {
	logger := New(DefaultConfig())
	newLogger := logger.WithField("key", "value")

	if newLogger == logger {
		t.Error("WithField should return a new logger instance")
	}

	if newLogger.Logger == nil {
		t.Error("New logger should have internal logger set")
	}
}

func TestWithError(t *testing.T) {
	logger := New(DefaultConfig())

	// nil error returns the same logger
	newLogger := logger.WithError(nil)
	if newLogger != logger {
		t.Error("WithError(nil) should return same logger")
	}

	newLogger = logger.WithError(errors.New("boom"))
	if newLogger == logger {
		t.Error("WithError should return a new logger instance")
	}
}

func TestRunAndMarket(t *testing.T) {
	logger := New(DefaultConfig())

	if logger.Run("run-1") == logger {
		t.Error("Run should return a new logger instance")
	}
	if logger.Market("mkt-1") == logger {
		t.Error("Market should return a new logger instance")
	}
	if logger.Component("backtest") == logger {
		t.Error("Component should return a new logger instance")
	}
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	custom := New(&Config{Level: slog.LevelWarn, Format: "text"})
	SetDefault(custom)

	if Default() != custom {
		t.Error("SetDefault should replace the default logger")
	}

	// nil is ignored
	SetDefault(nil)
	if Default() != custom {
		t.Error("SetDefault(nil) should keep the current default")
	}
}
