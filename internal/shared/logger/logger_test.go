package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		env, level string
		debug      bool
	}{
		{"local", "", true},
		{"prod", "", false},
		{"prod", "debug", true},
		{"local", "warn", false},
	}
	for _, c := range cases {
		l, err := New("table-service", c.env, c.level)
		if err != nil {
			t.Fatalf("%s/%s: %v", c.env, c.level, err)
		}
		if got := l.Core().Enabled(zapcore.DebugLevel); got != c.debug {
			t.Errorf("%s/%s debug enabled = %v", c.env, c.level, got)
		}
	}
	if _, err := New("x", "prod", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
