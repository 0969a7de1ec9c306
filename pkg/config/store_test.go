package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindReturnsDefaultWhenUnset(t *testing.T) {
	s := DefaultStore()
	assert.Equal(t, "fallback", s.Find("Acquire::http::Timeout", "fallback"))
}

func TestFindBParsesBooleans(t *testing.T) {
	s := DefaultStore()
	s.Set("Debug::Acquire::http", "true")
	assert.True(t, s.FindB("Debug::Acquire::http", false))
	assert.False(t, s.FindB("Debug::Acquire::gpgv", false))
}

func TestProxyHostSpecificOverridesGeneric(t *testing.T) {
	s := DefaultStore()
	s.Set("Acquire::http::Proxy", "http://generic:3128")
	s.Set("Acquire::http::Proxy::deb.example.org", "http://specific:3128")

	assert.Equal(t, "http://specific:3128", s.Proxy("deb.example.org"))
	assert.Equal(t, "http://generic:3128", s.Proxy("other.example.org"))
}

func TestProxyDirectMeansNoProxy(t *testing.T) {
	s := DefaultStore()
	s.Set("Acquire::http::Proxy", "http://generic:3128")
	s.Set("Acquire::http::Proxy::deb.example.org", "DIRECT")

	assert.Equal(t, "", s.Proxy("deb.example.org"))
}

func TestProxyFallsBackToEnvironment(t *testing.T) {
	t.Setenv("http_proxy", "http://env:3128")
	s := DefaultStore()
	assert.Equal(t, "http://env:3128", s.Proxy("deb.example.org"))
}

func TestApplyConfigItemsSkipsMalformed(t *testing.T) {
	s := DefaultStore()
	skipped := s.ApplyConfigItems([]string{
		"Acquire::http::Proxy=http://proxy:3128",
		"not-a-key-value-pair",
		"Debug::Acquire::gpgv=true",
	})
	require.Len(t, skipped, 1)
	assert.Equal(t, "not-a-key-value-pair", skipped[0])
	assert.Equal(t, "http://proxy:3128", s.Find("Acquire::http::Proxy", ""))
	assert.True(t, s.FindB("Debug::Acquire::gpgv", false))
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	fd, err := LoadFile("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Nil(t, fd)
}

func TestLoadFileAndApply(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("debug_http: true\ndefault_proxy: http://proxy:3128\nuser_agent: test-agent\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fd, err := LoadFile(f.Name())
	require.NoError(t, err)
	require.NotNil(t, fd)

	s := DefaultStore()
	fd.Apply(s)
	assert.True(t, s.FindB("Debug::Acquire::http", false))
	assert.Equal(t, "http://proxy:3128", s.Find("Acquire::http::Proxy", ""))
	assert.Equal(t, "test-agent", s.Find("Acquire::http::User-Agent", ""))
}

func TestConfigItemsOverrideFileDefaults(t *testing.T) {
	s := DefaultStore()
	s.Set("Acquire::http::Proxy", "http://from-file:3128")
	s.ApplyConfigItems([]string{"Acquire::http::Proxy=http://from-protocol:3128"})
	assert.Equal(t, "http://from-protocol:3128", s.Find("Acquire::http::Proxy", ""))
}
