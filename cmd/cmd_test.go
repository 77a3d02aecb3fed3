package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/roundup/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"watch", "--detach", "--addr", ":9000", "--detach=true"})
	assert.Equal(t, []string{"watch", "--addr", ":9000"}, got)
}

func TestPIDRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	require.NoError(t, writePID(path, 4242))

	pid, err := readPID(path)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	require.NoError(t, os.WriteFile(path, []byte("nope\n"), 0o600))
	_, err = readPID(path)
	assert.Error(t, err)
}

func TestEnsureWatchNotRunning_RemovesStalePID(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "watch.pid")
	require.NoError(t, ensureWatchNotRunning(pidFile), "missing pid file")

	// Current process is alive.
	require.NoError(t, writePID(pidFile, os.Getpid()))
	assert.Error(t, ensureWatchNotRunning(pidFile))
}

func TestStateRoundTrip(t *testing.T) {
	path := statePath(filepath.Join(t.TempDir(), "watch.pid"))
	in := watchRuntimeState{PID: 7, Addr: "127.0.0.1:9000", StartedAt: time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, writeState(path, in))

	out, err := readState(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWatchSettings(t *testing.T) {
	cfg := config.DefaultConfig()

	addr, interval := watchSettings(cfg)
	assert.Equal(t, cfg.Watch.Addr, addr)
	assert.Equal(t, 5*time.Minute, interval)

	flagWatchAddr, flagWatchInterval = ":9999", time.Minute
	t.Cleanup(func() { flagWatchAddr, flagWatchInterval = "", 0 })

	addr, interval = watchSettings(cfg)
	assert.Equal(t, ":9999", addr)
	assert.Equal(t, time.Minute, interval)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	flagBaseURL, flagTimeout, flagNoJournal = "https://api.example.test/v2", 2500*time.Millisecond, true
	t.Cleanup(func() { flagBaseURL, flagTimeout, flagNoJournal = "", 0, false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test/v2", cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.API.TimeoutSec)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoadConfig_RejectsBadBaseURL(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	flagBaseURL = "ftp://nope"
	t.Cleanup(func() { flagBaseURL = "" })

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestAccessTokenPrecedence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.AccessToken = "from-config"

	t.Setenv(config.TokenEnv, "")
	assert.Equal(t, "from-config", accessToken(cfg))

	t.Setenv(config.TokenEnv, "from-env")
	assert.Equal(t, "from-env", accessToken(cfg))

	flagToken = "from-flag"
	t.Cleanup(func() { flagToken = "" })
	assert.Equal(t, "from-flag", accessToken(cfg))
}
