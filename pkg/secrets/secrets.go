package secrets

import (
	"context"
	"os"
	"strings"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Common errors
var (
	ErrSecretNotFound = NewError("secret not found")
	ErrNoVaultToken   = NewError("no vault token provided")
	ErrNoVaultAddress = NewError("no vault address provided")
)

// Error represents a secrets management error
type Error string

// Error implements the error interface
func (e Error) Error() string {
	return string(e)
}

// NewError creates a new Error
func NewError(text string) Error {
	return Error(text)
}

// EnvKey maps a secret key such as "jwt-secret" or "ai.api_key" to its
// environment variable name
func EnvKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// EnvManager reads secrets from the environment only
type EnvManager struct{}

func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(EnvKey(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func (m EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if value, err := m.GetSecret(ctx, key); err == nil {
		return value
	}
	return defaultValue
}
