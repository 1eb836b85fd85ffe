package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		level zapcore.Level
	}{
		{"debug logs at debug level", true, zapcore.DebugLevel},
		{"default logs at info level", false, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.debug)
			if err != nil {
				t.Fatalf("NewLogger(%v) error: %v", tt.debug, err)
			}
			if !logger.Core().Enabled(tt.level) {
				t.Errorf("level %s not enabled", tt.level)
			}
			if tt.level > zapcore.DebugLevel && logger.Core().Enabled(zapcore.DebugLevel) {
				t.Error("debug output enabled outside debug mode")
			}
			_ = logger.Sync()
		})
	}
}
