package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load("", dir)
	require.NoError(t, err)

	require.Equal(t, 50, cfg.MaxLineChars)
	require.Equal(t, 10, cfg.MaxGroupSearchResults)
	require.Equal(t, 5, cfg.MaxGroupParticipantDisplay)
	require.Equal(t, 8, cfg.TimestampFontSize)
	require.Equal(t, 30*time.Second, cfg.FetchTimeout)
	require.Equal(t, []string{"text", "reddit", "slack", "gmail"}, cfg.Sources)
	require.Equal(t, "csv", cfg.Store.Backend)
	require.Equal(t, filepath.Join(dir, "data", "messages_processed.csv"), cfg.Store.Path)
	require.True(t, cfg.Notify.Enabled)
	require.True(t, cfg.Notify.StrictSenders)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, dir, cfg.Dir)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
max_line_chars: 40
fetch_timeout: 5s
sources: [reddit]
store:
  backend: sqlite
  path: /tmp/msgbar.db
reddit:
  accounts:
    - client_id: cid
      client_secret: secret
      refresh_token: rt
slack:
  accounts:
    - name: work
      token: xoxp-1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MSGBAR_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv("MSGBAR_NOTIFY_STRICT_SENDERS", "false")
	// godotenv.Load never overrides, so make sure the key starts unset.
	os.Unsetenv("MSGBAR_LOG_LEVEL")
	t.Cleanup(func() { os.Unsetenv("MSGBAR_LOG_LEVEL") })

	cfg, err := Load("", dir)
	require.NoError(t, err)

	require.Equal(t, 40, cfg.MaxLineChars)
	require.Equal(t, 5*time.Second, cfg.FetchTimeout)
	require.Equal(t, []string{"reddit"}, cfg.Sources)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, "/tmp/msgbar.db", cfg.Store.Path)
	require.Len(t, cfg.Reddit.Accounts, 1)
	require.Equal(t, "rt", cfg.Reddit.Accounts[0].RefreshToken)
	require.Equal(t, "work", cfg.Slack.Accounts[0].Name)
	require.Equal(t, "debug", cfg.Log.Level)
	require.False(t, cfg.Notify.StrictSenders)
}

func TestLoad_InvalidAccount(t *testing.T) {
	dir := t.TempDir()
	yaml := "reddit:\n  accounts:\n    - client_id: only\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Load("", dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reddit.accounts[0]")
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
}
