package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfig, "")

	c, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, "/tmp/myedit-stdin", c.Socket.Session)
	require.Equal(t, "/tmp/myedit-core", c.Socket.Command)
	require.Equal(t, filepath.Join("plugins", "out"), c.Extensions.Dir)
	require.Equal(t, 200*time.Millisecond, c.Extensions.Debounce)
	require.False(t, c.Extensions.Builtin)
	require.Equal(t, "info", c.Log.Level)
	require.True(t, c.LSP.Enabled)
	require.Empty(t, c.Web.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "myedit.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[socket]
session = "/run/me/stdin"

[extensions]
copy_dir = "/var/tmp/copies"
builtin = true
debounce = "1s"

[highlight]
style = "dracula"
`), 0o644))
	t.Setenv("MYEDIT_SOCKET_COMMAND", "/run/me/core")
	t.Setenv("MYEDIT_LOG_LEVEL", "debug")

	c, err := Load(New(), path)
	require.NoError(t, err)
	require.Equal(t, "/run/me/stdin", c.Socket.Session)
	require.Equal(t, "/run/me/core", c.Socket.Command)
	require.Equal(t, "/var/tmp/copies", c.Extensions.CopyDir)
	require.True(t, c.Extensions.Builtin)
	require.Equal(t, time.Second, c.Extensions.Debounce)
	require.Equal(t, "dracula", c.Highlight.Style)
	require.Equal(t, "debug", c.Log.Level)
}

func TestLoadFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[web]\naddr = \":9000\"\n"), 0o644))
	t.Setenv(EnvConfig, path)

	c, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, ":9000", c.Web.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[socket\n"), 0o644))
	_, err := Load(New(), path)
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.log")
	log, err := LogConfig{File: path, Level: "warn"}.Logger()
	require.NoError(t, err)
	require.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	log.WithField("client", "1v0").Warn("shown")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "client=1v0")

	_, err = LogConfig{Level: "loud"}.Logger()
	require.Error(t, err)
}
