package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/reactive-docstore/logging"
	"github.com/stevemurr/reactive-docstore/store"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.True(t, cfg.Store.DedupeByContent)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  allowed_origins: ["http://localhost:3000"]
store:
  backend: sqlite
  latency: 25ms
  dedupe_by_content: false
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset fields keep defaults")
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 25*time.Millisecond, cfg.Store.Latency)
	assert.False(t, cfg.Store.DedupeByContent)
	assert.True(t, cfg.Store.EmitInitial)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [nope"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{
		"HOST":            "127.0.0.1",
		"PORT":            "9999",
		"STORE_BACKEND":   "sqlite",
		"ALLOWED_ORIGINS": "http://a.test, http://b.test,",
		"LOG_LEVEL":       "warn",
		"STORE_LATENCY":   "1s",
	})))
	assert.Equal(t, "127.0.0.1:9999", cfg.Addr())
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Store.Latency)

	assert.ErrorIs(t, Default().ApplyEnv(env(map[string]string{"PORT": "http"})), ErrInvalid)
	assert.ErrorIs(t, Default().ApplyEnv(env(map[string]string{"STORE_LATENCY": "soon"})), ErrInvalid)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"backend": func(c *Config) { c.Store.Backend = "json" },
		"port":    func(c *Config) { c.Server.Port = 70000 },
		"latency": func(c *Config) { c.Store.Latency = -time.Second },
		"ping":    func(c *Config) { c.Watch.PingInterval = 0 },
		"level":   func(c *Config) { c.Log.Level = "loud" },
	} {
		cfg := Default()
		mutate(cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid, name)
	}
}

func TestStoreOptions(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "sqlite"
	cfg.Store.Latency = time.Millisecond
	cfg.Store.EmitInitial = false
	cfg.Store.ThrowOnSave = true

	opts, err := cfg.StoreOptions(logging.Nop())
	require.NoError(t, err)
	s := store.New(opts...)
	defer s.Dispose()

	got := s.Options()
	assert.Equal(t, time.Millisecond, got.Latency)
	assert.False(t, got.EmitInitial)
	assert.True(t, got.ThrowOnSave)
	assert.IsType(t, &store.SqliteBackend{}, got.Backend)

	cfg.Store.Backend = "json"
	_, err = cfg.StoreOptions(logging.Nop())
	assert.Error(t, err)
}
