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
	t.Chdir(t.TempDir())

	c, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, ".", c.Dir)
	assert.Equal(t, "file", c.Source)
	assert.True(t, c.Notify)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, 30*time.Second, c.Redis.LockTTL)
	assert.Empty(t, c.Redis.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dir: addins
strict: true
redis:
  addr: localhost:6379
  lock_ttl: 5s
`), 0o644))

	t.Setenv("ARBOR_CONFIG", path)
	t.Setenv("ARBOR_FORMAT", "mermaid")
	t.Setenv("ARBOR_HTTP_ADDR", ":9090")

	c, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "addins", c.Dir)
	assert.True(t, c.Strict)
	assert.Equal(t, "mermaid", c.Format)
	assert.Equal(t, ":9090", c.HTTP.Addr)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.Equal(t, 5*time.Second, c.Redis.LockTTL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("ARBOR_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load(New())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	v := New()
	v.Set("format", "svg")
	_, err := Load(v)
	assert.ErrorContains(t, err, "invalid format")

	v = New()
	v.Set("source", "sql")
	_, err = Load(v)
	assert.ErrorContains(t, err, "invalid source")
}
