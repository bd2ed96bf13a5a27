package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORE_BACKEND", "KV_ENGINE", "MAX_STUDENTS", "MAX_RECORDS", "MAX_TRAINERS", "ACCESS_TTL", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, BackendKV, cfg.StoreBackend)
	assert.Equal(t, EngineMemory, cfg.KVEngine)
	assert.Equal(t, 5000, cfg.MaxStudents)
	assert.Equal(t, 5000, cfg.MaxRecords)
	assert.Equal(t, 100, cfg.MaxTrainers)
	assert.Equal(t, 12*time.Hour, cfg.AccessTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "docs")
	t.Setenv("MAX_RECORDS", "250")
	t.Setenv("ACCESS_TTL", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	assert.Equal(t, BackendDocs, cfg.StoreBackend)
	assert.Equal(t, 250, cfg.MaxRecords)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestBadValuesFallBack(t *testing.T) {
	t.Setenv("MAX_STUDENTS", "lots")
	t.Setenv("ACCESS_TTL", "forever")

	cfg := Load()

	assert.Equal(t, 5000, cfg.MaxStudents)
	assert.Equal(t, 12*time.Hour, cfg.AccessTTL)
}

func TestValidate(t *testing.T) {
	base := App{StoreBackend: BackendKV, KVEngine: EngineMemory, QueueBackend: QueueMemory, AdminPasscode: "0000"}

	cases := []struct {
		name    string
		mutate  func(*App)
		wantErr bool
	}{
		{"ok", func(*App) {}, false},
		{"unknown backend", func(a *App) { a.StoreBackend = "sqlite" }, true},
		{"unknown engine", func(a *App) { a.KVEngine = "disk" }, true},
		{"docs without url", func(a *App) { a.StoreBackend = BackendDocs }, true},
		{"short admin passcode", func(a *App) { a.AdminPasscode = "12" }, true},
		{"prod with dev key", func(a *App) { a.Env = "prod"; a.JWTSigningKey = "dev-signing-secret-change" }, true},
		{"production with dev key", func(a *App) { a.Env = "production"; a.JWTSigningKey = "dev-signing-secret-change" }, true},
		{"unknown queue", func(a *App) { a.QueueBackend = "rabbit" }, true},
		{"empty queue", func(a *App) { a.QueueBackend = "" }, true},
		{"redis queue over memory store", func(a *App) { a.QueueBackend = QueueRedis }, true},
		{"redis queue over redis store", func(a *App) { a.QueueBackend = QueueRedis; a.KVEngine = EngineRedis }, false},
		{"redis queue over docs store", func(a *App) {
			a.QueueBackend = QueueRedis
			a.StoreBackend = BackendDocs
			a.DatabaseURL = "postgres://localhost/attendance"
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProduction(t *testing.T) {
	for env, want := range map[string]bool{"prod": true, "production": true, "dev": false, "": false} {
		assert.Equal(t, want, App{Env: env}.Production(), env)
	}
}
