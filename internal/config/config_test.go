package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.ReviewRequired)
	assert.True(t, cfg.Offline())
	assert.Equal(t, 4*time.Second, cfg.SkipReveal)
	assert.Equal(t, 3*time.Second, cfg.SpinAnimation)
	assert.Equal(t, time.Second, cfg.SpinSettle)
	assert.Equal(t, time.Minute, cfg.AutoReturn)
	assert.Equal(t, 1800.0, cfg.BaseRotationDeg)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, 30, cfg.PrizeValidDays)
	assert.Equal(t, 3, cfg.SlideCount)
}

func TestLoad_OverridesAndClamps(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("UPSTREAM_BASE_URL", "http://rewards.local/api/v1")
	t.Setenv("REVIEW_REQUIRED", "off")
	t.Setenv("BASE_ROTATION_DEG", "720")
	t.Setenv("AUTO_RETURN_MS", "1000")
	t.Setenv("SPIN_SETTLE_MS", "250")
	t.Setenv("CATALOG_CACHE_TTL_SEC", "bogus")

	cfg := Load()
	assert.False(t, cfg.Offline())
	assert.False(t, cfg.ReviewRequired)
	assert.Equal(t, 1800.0, cfg.BaseRotationDeg, "never fewer than five turns")
	assert.Equal(t, 5*time.Second, cfg.AutoReturn)
	assert.Equal(t, 250*time.Millisecond, cfg.SpinSettle)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# kiosk\nSITE_URL=\"https://shop.example.com\"\nSLIDE_COUNT=5\n"), 0o600))
	chdir(t, dir)
	t.Setenv("SITE_URL", "")
	t.Setenv("SLIDE_COUNT", "")

	cfg := Load()
	assert.Equal(t, "https://shop.example.com", cfg.SiteURL)
	assert.Equal(t, 5, cfg.SlideCount)
}
