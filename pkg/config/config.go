package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"cooperative-ai/backend/pkg/secrets"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port            string
		GRPCPort        string
		Env             string
		Timeout         time.Duration
		ShutdownTimeout time.Duration
	}

	// Database configuration, used when Store.Driver is postgres
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Retries  int
	}

	// Store selects the user store
	Store struct {
		Driver          string
		MongoURI        string
		MongoDatabase   string
		MongoCollection string
	}

	// Cache settings for the user record cache
	Cache struct {
		Enabled       bool
		RedisURL      string
		RedisPassword string
		RedisDB       int
		TTL           time.Duration
		MaxSize       int
	}

	// Auth configuration
	Auth struct {
		JWTSecret    string
		JWTExpiry    time.Duration
		CookieName   string
		CookieSecret string
	}

	// Security configuration
	Security struct {
		AllowedOrigin  string
		RateLimit      float64
		RateLimitBurst int
		TrustedProxies []string
		// SchemaPath replaces the built-in request schema; reloaded on SIGHUP
		SchemaPath string
	}

	// AI provider configuration
	AI struct {
		Provider         string
		Model            string
		APIKey           string
		BaseURL          string
		Timeout          time.Duration
		BreakerFailures  uint
		BreakerRetryWait time.Duration
	}

	// Vault configuration
	Vault struct {
		Enabled   bool
		Address   string
		Token     string
		Namespace string
		Mount     string
		Path      string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Observability configuration
	Observability struct {
		TracingEnabled bool
		ServiceName    string
	}

	// Errors controls how list and clear report internal failures
	Errors struct {
		LegacyMarker bool
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()

		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "5000")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 60*time.Second)
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	// Database config
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "cooperative_ai")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Retries = getEnvInt("DB_RETRIES", 5)

	// Store config
	cfg.Store.Driver = strings.ToLower(getEnvString("STORE_DRIVER", StoreDriverPostgres))
	cfg.Store.MongoURI = getEnvString("MONGODB_URL", "mongodb://localhost:27017")
	cfg.Store.MongoDatabase = getEnvString("MONGODB_DATABASE", "cooperative_ai")
	cfg.Store.MongoCollection = getEnvString("MONGODB_COLLECTION", "users")

	// Cache config
	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", false)
	cfg.Cache.RedisURL = getEnvString("REDIS_URL", "")
	cfg.Cache.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.Cache.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)

	// Auth config
	cfg.Auth.JWTSecret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	cfg.Auth.JWTExpiry = getEnvDuration("JWT_EXPIRY", 7*24*time.Hour)
	cfg.Auth.CookieName = getEnvString("COOKIE_NAME", "auth_token")
	cfg.Auth.CookieSecret = getEnvString("COOKIE_SECRET", "default-cookie-secret-do-not-use-in-production")

	// Security config
	cfg.Security.AllowedOrigin = getEnvString("FRONTEND_URL", "http://localhost:5173")
	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 2)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	// AI config
	cfg.AI.Provider = strings.ToLower(getEnvString("AI_PROVIDER", "gemini"))
	cfg.AI.Model = getEnvString("AI_MODEL", "")
	cfg.AI.APIKey = getEnvString("AI_API_KEY", os.Getenv("GEMINI_API_KEY"))
	cfg.AI.BaseURL = getEnvString("AI_BASE_URL", "")
	cfg.AI.Timeout = getEnvDuration("AI_TIMEOUT", 45*time.Second)
	cfg.AI.BreakerFailures = uint(getEnvInt("AI_BREAKER_FAILURES", 5))
	cfg.AI.BreakerRetryWait = getEnvDuration("AI_BREAKER_RETRY", 30*time.Second)

	// Vault config
	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.Path = getEnvString("VAULT_SECRETS_PATH", "cooperative-ai")

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Observability config
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "cooperative-ai-backend")

	cfg.Errors.LegacyMarker = getEnvBool("LEGACY_ERROR_MARKER", true)

	return cfg
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Secret keys looked up by ResolveSecrets
const (
	SecretJWT    = "jwt-secret"
	SecretCookie = "cookie-secret"
	SecretAIKey  = "ai-api-key"
)

// ResolveSecrets overrides credentials with values from m where present
func (c *Config) ResolveSecrets(ctx context.Context, m secrets.Manager) {
	c.Auth.JWTSecret = m.GetSecretWithDefault(ctx, SecretJWT, c.Auth.JWTSecret)
	c.Auth.CookieSecret = m.GetSecretWithDefault(ctx, SecretCookie, c.Auth.CookieSecret)
	c.AI.APIKey = m.GetSecretWithDefault(ctx, SecretAIKey, c.AI.APIKey)
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
