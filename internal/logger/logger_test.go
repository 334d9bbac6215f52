package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		level string
		debug bool
		want  zapcore.Level
	}{
		{"debug", false, zapcore.DebugLevel},
		{"info", false, zapcore.InfoLevel},
		{"warn", false, zapcore.WarnLevel},
		{"error", false, zapcore.ErrorLevel},
		{"bogus", false, zapcore.InfoLevel},
		{"", false, zapcore.InfoLevel},
		{"fatal", false, zapcore.ErrorLevel},
		{"info", true, zapcore.DebugLevel},
	}
	for _, c := range cases {
		log, err := New(c.level, c.debug)
		if err != nil {
			t.Fatalf("New(%q, %v): %v", c.level, c.debug, err)
		}
		if !log.Core().Enabled(c.want) {
			t.Fatalf("New(%q, %v): level %s not enabled", c.level, c.debug, c.want)
		}
		if c.want > zapcore.DebugLevel && log.Core().Enabled(c.want-1) {
			t.Fatalf("New(%q, %v): level %s unexpectedly enabled", c.level, c.debug, c.want-1)
		}
	}
}
