package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "trace", want: zerolog.TraceLevel},
		{in: "DEBUG", want: zerolog.DebugLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "info", want: zerolog.InfoLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hiitbox.log")
	require.NoError(t, Init(Config{Output: "file", Level: "debug", File: path}))
	t.Cleanup(func() {
		_ = Close()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	zlog.Info().Str("exercise_id", "ex-1").Msg("exercise added")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "exercise added", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ex-1", entry["exercise_id"])
	assert.Contains(t, entry["caller"], "logger/logger_test.go")
}

func TestInit_FileOutputRequiresPath(t *testing.T) {
	assert.Error(t, Init(Config{Output: "file"}))
}

func TestShortCaller(t *testing.T) {
	assert.Equal(t, filepath.Join("interval", "engine.go")+":42", shortCaller(0, filepath.Join("src", "interval", "engine.go"), 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}
