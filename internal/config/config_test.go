package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultRunnerTimeout, cfg.Runner.Timeout)
	assert.Empty(t, cfg.Server.APITokens)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
  api_tokens:
    - tok-1
    - tok-2
db_path: /tmp/forge.db
log_level: debug
gemini:
  model: gemini-2.0-pro
runner:
  timeout: 10s
  output_limit: 4096
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"tok-1", "tok-2"}, cfg.Server.APITokens)
	assert.Equal(t, "/tmp/forge.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "gemini-2.0-pro", cfg.Gemini.Model)
	assert.Equal(t, 10*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 4096, cfg.Runner.OutputLimit)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /from/file.db\n"), 0o644))

	t.Setenv("CODEFORGE_DB_PATH", "/from/env.db")
	t.Setenv("CODEFORGE_ADDR", ":7070")
	t.Setenv("CODEFORGE_API_TOKENS", "a, b ,c")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CODEFORGE_RUNNER_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env.db", cfg.DBPath)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APITokens)
	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Runner.Timeout)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
