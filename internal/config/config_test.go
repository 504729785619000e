package config

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORTAL_ADDR", "CMS_URL", "CMS_API_TOKEN", "REDIS_URL",
		"SEAT_LOCK_ENABLED", "DATABASE_URL", "UPLOAD_RECONCILE_DELAY_MS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://localhost:1337", cfg.CMSURL)
	assert.Empty(t, cfg.CMSToken)
	assert.False(t, cfg.SeatLock)
	assert.Equal(t, 1500*time.Millisecond, cfg.UploadReconcileDelay)
	assert.Equal(t, 15*time.Second, cfg.CMSTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CMS_URL", "https://cms.example.org/")
	t.Setenv("SEAT_LOCK_ENABLED", "true")
	t.Setenv("IDENTITY_CACHE_TTL_SECONDS", "60")
	t.Setenv("UPLOAD_RECONCILE_DELAY_MS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "https://cms.example.org", cfg.CMSURL, "trailing slash is trimmed")
	assert.True(t, cfg.SeatLock)
	assert.Equal(t, time.Minute, cfg.IdentityTTL)
	assert.Equal(t, 1500*time.Millisecond, cfg.UploadReconcileDelay, "bad ints fall back")
}

func TestNewLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("component", "test"))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}
