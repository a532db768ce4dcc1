package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFrom_Valid(t *testing.T) {
	p := writeConfig(t, `server:
  host: "127.0.0.1"
  port: ":9000"
limits:
  max_pages: 20
cache:
  redis_host: "localhost:6379"
  redis_page_db: 2
  page_cache_enabled: true
  page_cache_ttl: 5m
auth:
  enabled: true
  postgres:
    host: "db"
    database: "tokens"
    user: "app"
  reload_interval: 30s
rate_limiter:
  interval: 1h
  user_limit: 20
render:
  engine: "PDFium"
  concurrency: 3
  default_dpi: 150
`)
	cfg := LoadFrom(p)

	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, 20, cfg.Limits.MaxPages)
	assert.Equal(t, 2, cfg.Cache.PageCacheDB)
	assert.Equal(t, 5*time.Minute, cfg.Cache.PageCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Auth.ReloadInterval)
	assert.Equal(t, time.Hour, cfg.RateLimiter.Interval)
	assert.Equal(t, EnginePDFium, cfg.Render.Engine)
	assert.Equal(t, 3, cfg.Render.Concurrency)
	assert.Equal(t, 150.0, cfg.Render.DefaultDPI)

	other := LoadFrom(writeConfig(t, "server:\n  port: \":7000\"\n"))
	assert.Equal(t, ":7000", other.Server.Port)
	assert.Equal(t, ":9000", cfg.Server.Port)
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg := LoadFrom(writeConfig(t, "{}\n"))

	assert.Equal(t, ":8000", cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.BodyLimitMB)
	assert.Equal(t, 50*1024*1024, cfg.Limits.MaxDocumentBytes)
	assert.Equal(t, 500, cfg.Limits.MaxPages)
	assert.Equal(t, EngineFitz, cfg.Render.Engine)
	assert.Equal(t, DefaultConcurrency(), cfg.Render.Concurrency)
	assert.Equal(t, runtime.NumCPU(), cfg.Render.PoolSize)
	assert.Equal(t, 200.0, cfg.Render.DefaultDPI)
	assert.Equal(t, 600.0, cfg.Render.MaxDPI)
	assert.Equal(t, "pdftoppm", cfg.Render.PdftoppmPath)
	assert.Equal(t, 60*time.Second, cfg.RenderTimeout())
	assert.Equal(t, 30*time.Second, cfg.AcquireTimeout())
	assert.Equal(t, time.Minute, cfg.RateLimiter.Interval)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("PDF2PNG_ENGINE", "poppler")
	t.Setenv("PDFTOPPM_BIN", "/opt/poppler/bin/pdftoppm")

	cfg := LoadFrom(writeConfig(t, "render:\n  engine: fitz\n"))
	assert.Equal(t, EnginePoppler, cfg.Render.Engine)
	assert.Equal(t, "/opt/poppler/bin/pdftoppm", cfg.Render.PdftoppmPath)
}

func TestLoadFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "unknown engine", yml: "render:\n  engine: ghostscript\n"},
		{name: "negative concurrency", yml: "render:\n  concurrency: -1\n"},
		{name: "default dpi above max", yml: "render:\n  default_dpi: 900\n  max_dpi: 600\n"},
		{name: "negative user limit", yml: "rate_limiter:\n  user_limit: -1\n"},
		{name: "negative rate interval", yml: "rate_limiter:\n  interval: -1s\n"},
		{name: "auth without postgres", yml: "auth:\n  enabled: true\n"},
		{name: "malformed yaml", yml: "render: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			assert.Panics(t, func() { _ = LoadFrom(p) })
		})
	}

	assert.Panics(t, func() { _ = LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestLoad_UsesConfigPathEnv(t *testing.T) {
	p := writeConfig(t, "server:\n  port: \":7070\"\n")
	t.Setenv("CONFIG_PATH", p)

	cfg := Load()
	assert.Equal(t, ":7070", cfg.Server.Port)
}

func TestDefaultConcurrency(t *testing.T) {
	n := DefaultConcurrency()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 4)
}
