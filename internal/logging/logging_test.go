// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/zotnote/pkg/types"
)

func TestNew_ConsoleOnly(t *testing.T) {
	var stderr bytes.Buffer
	logger, closer, err := New(types.LogConfig{}, &stderr, false)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", slog.String("key", "F5R83K6P"))
	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shown")
	assert.Contains(t, stderr.String(), "key=F5R83K6P")
}

func TestNew_FileGetsJSONAtConfiguredLevel(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "zotnote.log")
	logger, closer, err := New(types.LogConfig{File: path, Level: "debug"}, &stderr, false)
	require.NoError(t, err)

	logger.With(slog.String("component", "sync")).Debug("sync: starting", slog.Int("since", 7))
	require.NoError(t, closer.Close())

	assert.Empty(t, stderr.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "sync: starting", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "sync", rec["component"])
	assert.EqualValues(t, 7, rec["since"])
}

func TestNew_VerboseConsole(t *testing.T) {
	var stderr bytes.Buffer
	logger, _, err := New(types.LogConfig{}, &stderr, true)
	require.NoError(t, err)
	logger.Debug("details")
	assert.Contains(t, stderr.String(), "details")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)

	_, _, err = New(types.LogConfig{File: filepath.Join(t.TempDir(), "x.log"), Level: "loud"}, &bytes.Buffer{}, false)
	assert.Error(t, err)
}
