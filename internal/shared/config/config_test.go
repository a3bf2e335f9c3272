package config

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func setREST(t *testing.T) {
	t.Setenv("BACKEND_MODE", "rest")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SESSION_STORE", "file")
	t.Setenv("UI_MAX_DISTANCE_KM", "")
	t.Setenv("UI_DEBOUNCE_MILLIS", "")
}

func TestLoadDefaults(t *testing.T) {
	setREST(t)

	cfg, err := Load()
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.Backend.Mode, BackendModeREST)
	assert.Equal(t, cfg.Backend.RequestTimeout, 15*time.Second)
	assert.Equal(t, cfg.UI.DebounceWindow, 50*time.Millisecond)
	assert.Equal(t, cfg.UI.MaxDistanceKm, 50.0)
	assert.Equal(t, cfg.Session.TTL, 30*24*time.Hour)
}

func TestRESTRequiresURL(t *testing.T) {
	setREST(t)
	t.Setenv("SUPABASE_URL", "")

	_, err := Load()
	assert.NotEqual(t, err, nil)
}

func TestPostgresRequiresLongSecret(t *testing.T) {
	setREST(t)
	t.Setenv("BACKEND_MODE", "postgres")
	t.Setenv("AUTH_JWT_SECRET", "short")
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE"} {
		t.Setenv(key, "")
	}

	_, err := Load()
	assert.NotEqual(t, err, nil)

	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.ConnectionString(), "host=localhost port=5432 user=postgres password=postgres dbname=domino sslmode=disable")
}

func TestRedisStoreNeedsRedis(t *testing.T) {
	setREST(t)
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_ENABLED", "false")

	_, err := Load()
	assert.NotEqual(t, err, nil)
}

func TestMaxDistanceBounds(t *testing.T) {
	setREST(t)
	t.Setenv("UI_MAX_DISTANCE_KM", "150")

	_, err := Load()
	assert.NotEqual(t, err, nil)
}
