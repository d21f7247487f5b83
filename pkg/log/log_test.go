package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewHandler_Formats(t *testing.T) {
	for _, format := range []string{"text", "json", "tint"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer

			logger := slog.New(NewHandler(&buf, "info", format))
			logger.Info("hello", "execution_id", "exec-1")
			logger.Debug("hidden")

			assert.Contains(t, buf.String(), "hello")
			assert.Contains(t, buf.String(), "exec-1")
			assert.NotContains(t, buf.String(), "hidden")
		})
	}
}
