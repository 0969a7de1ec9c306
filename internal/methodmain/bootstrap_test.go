package methodmain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPathRespectsEnvVar(t *testing.T) {
	t.Setenv("APT_METHOD_CONFIG", "/etc/apt-method/config.yaml")
	assert.Equal(t, "/etc/apt-method/config.yaml", defaultConfigPath())
}

func TestDefaultConfigPathFallsBackToHomeDir(t *testing.T) {
	t.Setenv("APT_METHOD_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".config", "apt-method", "config.yaml"), defaultConfigPath())
}

func TestLoadStoreToleratesMissingConfigFile(t *testing.T) {
	dir := t.TempDir()
	store := LoadStore(Options{ConfigPath: filepath.Join(dir, "does-not-exist.yaml")})
	require.NotNil(t, store)
	assert.Equal(t, "", store.Find("Acquire::http::Proxy", ""))
	assert.False(t, store.FindB("Debug::Acquire::http", false))
}

func TestLoadStoreAppliesFileDefaultsThenDebugOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "default_proxy: http://proxy.example.org:3128\nuser_agent: test-agent\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	store := LoadStore(Options{ConfigPath: path, Debug: true})

	assert.Equal(t, "http://proxy.example.org:3128", store.Find("Acquire::http::Proxy", ""))
	assert.Equal(t, "test-agent", store.Find("Acquire::http::User-Agent", ""))
	assert.True(t, store.FindB("Debug::Acquire::http", false))
	assert.True(t, store.FindB("Debug::Acquire::gpgv", false))
}

func TestLoadStoreDebugOverrideWinsOverFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug_http: false\ndebug_gpgv: false\n"), 0o644))

	store := LoadStore(Options{ConfigPath: path, Debug: true})

	assert.True(t, store.FindB("Debug::Acquire::http", false))
	assert.True(t, store.FindB("Debug::Acquire::gpgv", false))
}
