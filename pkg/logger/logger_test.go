package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug", "production"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN", "development"))
	assert.Equal(t, slog.LevelError, parseLevel("error", ""))
	assert.Equal(t, slog.LevelInfo, parseLevel("", "production"))
	assert.Equal(t, slog.LevelDebug, parseLevel("", "development"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose", "production"))
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, "json", resolveFormat("json", "development"))
	assert.Equal(t, "text", resolveFormat("TEXT", "production"))
	assert.Equal(t, "json", resolveFormat("", "production"))
	assert.Equal(t, "text", resolveFormat("", "development"))
	assert.Equal(t, "json", resolveFormat("logfmt", "production"))
}
