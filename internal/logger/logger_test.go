package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortener/internal/models"
	"shortener/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVersion() version.Info {
	return version.Info{Version: "v1.2.3", GitCommit: "abc1234", InstanceID: "instance-1"}
}

func TestSetupJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	cfg := models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: path}

	log, closer, err := Setup(cfg, testVersion())
	require.NoError(t, err)
	require.NotNil(t, closer)

	log.Info("server started", "port", 8080)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "server started", entry["msg"])
	assert.Equal(t, "v1.2.3", entry["version"])
	assert.Equal(t, "abc1234", entry["git_commit"])
	assert.Equal(t, "instance-1", entry["instance_id"])
	assert.EqualValues(t, 8080, entry["port"])
}

func TestSetupTextFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	cfg := models.LoggingConfig{Level: "debug", Format: "text", Output: "file", FilePath: path}

	log, closer, err := Setup(cfg, testVersion())
	require.NoError(t, err)

	log.Debug("probe")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=probe")
	assert.Contains(t, string(data), "version=v1.2.3")
}

func TestSetupLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	cfg := models.LoggingConfig{Level: "warn", Format: "json", Output: "file", FilePath: path}

	log, closer, err := Setup(cfg, testVersion())
	require.NoError(t, err)

	log.Info("suppressed")
	log.Warn("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed")
	assert.Contains(t, string(data), "kept")
}

func TestSetupStdoutHasNoCloser(t *testing.T) {
	cfg := models.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

	log, closer, err := Setup(cfg, testVersion())
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.Nil(t, closer)
}

func TestSetupErrors(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		_, _, err := Setup(models.LoggingConfig{Level: "verbose", Format: "json", Output: "stdout"}, testVersion())
		assert.Error(t, err)
	})

	t.Run("file output without path", func(t *testing.T) {
		_, _, err := Setup(models.LoggingConfig{Level: "info", Format: "json", Output: "file"}, testVersion())
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"Error", slog.LevelError},
	}
	for _, tt := range tests {
		level, err := parseLevel(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, level)
	}

	_, err := parseLevel("trace")
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}
