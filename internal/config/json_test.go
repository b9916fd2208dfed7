package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	cfg := LoadConfig()
	assert.Equal(t, "nostrchat.db", cfg.DatabasePath)
	assert.Empty(t, cfg.OwnerPubkey)
}

func TestLoadConfig_JsonOverlay(t *testing.T) {
	owner := strings.Repeat("a", 64)
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file,
		[]byte(`{"database_path":"/tmp/chat.db","owner_pubkey":"`+owner+`"}`), 0o600))
	t.Setenv(EnvConfigFile, file)

	cfg := LoadConfig()
	assert.Equal(t, "/tmp/chat.db", cfg.DatabasePath)
	assert.Equal(t, owner, cfg.OwnerPubkey)
}

func TestLoadConfig_PartialOverlayKeepsDefaults(t *testing.T) {
	owner := strings.Repeat("a", 64)
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"owner_pubkey":"`+owner+`"}`), 0o600))
	t.Setenv(EnvConfigFile, file)

	cfg := LoadConfig()
	assert.Equal(t, "nostrchat.db", cfg.DatabasePath)
	assert.Equal(t, owner, cfg.OwnerPubkey)
}

func TestLoadConfig_BrokenFilePanics(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{broken`), 0o600))
	t.Setenv(EnvConfigFile, file)

	assert.Panics(t, func() { LoadConfig() })
}
