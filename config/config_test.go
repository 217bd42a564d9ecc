package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSite = `
id: jisilu
list_url: https://www.jisilu.cn/web/data/cb/list
primary_cookie: kbzw__user_login
endpoints:
  list: https://www.jisilu.cn/webapi/cb/list/
login:
  prompt: .prompt
`

func writeSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jisilu.yaml"), []byte(testSite), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SITES_DIR", writeSite(t))
	t.Setenv("DATABASE_URL", "postgres://localhost/kzz")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Crawler.Concurrency)
	assert.Equal(t, 3, cfg.Crawler.MaxAttempts)
	assert.Equal(t, 50, cfg.Crawler.ListMinItems)
	assert.Equal(t, 40*time.Second, cfg.Monitor.MinInterval)
	assert.Equal(t, 300*time.Second, cfg.Monitor.MaxInterval)
	assert.Equal(t, 20*time.Second, cfg.Monitor.Step)
	assert.Equal(t, "30 21 * * *", cfg.Scheduler.NightlyCron)
	assert.Equal(t, LogConfig{Path: "daemon.log", MaxSize: 2 << 20, Backups: 3}, cfg.Log)

	site := cfg.Site()
	require.NotNil(t, site)
	assert.Equal(t, "kbzw__user_login", site.PrimaryCookie)
	assert.Equal(t, "https://www.jisilu.cn/webapi/cb/list/", site.Endpoints[EndpointList])
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SITES_DIR", writeSite(t))
	t.Setenv("DATABASE_URL", "postgres://localhost/kzz")
	t.Setenv("CRAWL_CONCURRENCY", "3")
	t.Setenv("CRAWL_ENQUEUE_DELAY", "8s")
	t.Setenv("MONITOR_FORCE", "true")
	t.Setenv("MONITOR_FALL_PCT", "-3.5")
	t.Setenv("LOG_MAX_SIZE_KB", "512")
	t.Setenv("LOG_BACKUPS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Crawler.Concurrency)
	assert.Equal(t, 8*time.Second, cfg.Crawler.EnqueueDelay)
	assert.True(t, cfg.Monitor.Force)
	assert.InDelta(t, -3.5, cfg.Monitor.FallThreshold, 1e-9)
	assert.Equal(t, int64(512*1024), cfg.Log.MaxSize)
	assert.Zero(t, cfg.Log.Backups)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("SITES_DIR", writeSite(t))
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadUnknownSite(t *testing.T) {
	t.Setenv("SITES_DIR", writeSite(t))
	t.Setenv("DATABASE_URL", "postgres://localhost/kzz")
	t.Setenv("SITE_ID", "other")

	_, err := Load()
	require.ErrorContains(t, err, `no site config for "other"`)
}
