package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, slog.LevelInfo, cfg.Level())

	feed, err := cfg.FeedURL()
	require.NoError(t, err)
	assert.Empty(t, feed, "offline by default")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
database: /var/lib/storesync/local.db
remote_url: http://localhost:8787
writeback_delay: 500ms
log_level: debug
`)
	cfg, err := Load(path, envMap(map[string]string{
		"STORESYNC_WRITEBACK_DELAY": "3s",
		"STORESYNC_SPIN_DURATION":   "1s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/storesync/local.db", cfg.Database)
	assert.Equal(t, 3*time.Second, cfg.WritebackDelay, "env overrides file")
	assert.Equal(t, time.Second, cfg.SpinDuration)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	feed, err := cfg.FeedURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8787/realtime", feed)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeFile(t, "databse: typo.db\n")
	_, err := Load(path, envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse")
}

func TestLoad_BadEnvDuration(t *testing.T) {
	_, err := Load("", envMap(map[string]string{"STORESYNC_SPIN_DURATION": "soon"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORESYNC_SPIN_DURATION")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Database = ""
	cfg.WritebackDelay = 0
	cfg.RemoteURL = "localhost:8787"
	cfg.RealtimeURL = "http://localhost/realtime"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"database", "writeback_delay", "remote_url", "realtime_url", "log_level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestFeedURL_ExplicitWins(t *testing.T) {
	cfg := Default()
	cfg.RemoteURL = "https://api.example.com"
	cfg.RealtimeURL = "wss://push.example.com/feed"
	feed, err := cfg.FeedURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://push.example.com/feed", feed)
}
