package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mapSecrets map[string]string

func (m mapSecrets) GetSecret(_ context.Context, key string) (string, error) {
	return m[key], nil
}

func (m mapSecrets) GetSecretWithDefault(_ context.Context, key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_DRIVER", "AI_PROVIDER", "LEGACY_ERROR_MARKER", "JWT_EXPIRY"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.True(t, cfg.Errors.LegacyMarker)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.JWTExpiry)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("RATE_LIMIT", "0.5")
	t.Setenv("JWT_EXPIRY", "1h")
	t.Setenv("LEGACY_ERROR_MARKER", "false")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	assert.Equal(t, 0.5, cfg.Security.RateLimit)
	assert.Equal(t, time.Hour, cfg.Auth.JWTExpiry)
	assert.False(t, cfg.Errors.LegacyMarker)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Security.TrustedProxies)
	assert.Equal(t, 20, cfg.Database.MaxConns)
}

func TestResolveSecretsOverridesOnlyKnownKeys(t *testing.T) {
	cfg := Load()
	cfg.AI.APIKey = "env-key"

	cfg.ResolveSecrets(context.Background(), mapSecrets{SecretJWT: "vault-jwt"})

	assert.Equal(t, "vault-jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, "env-key", cfg.AI.APIKey)
}

func TestDSN(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "db"
	cfg.Database.Port = "5432"
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Name = "n"
	cfg.Database.SSLMode = "disable"

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DSN())
}
