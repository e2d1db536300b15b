package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when the provider answers without any text
var ErrEmptyResponse = errors.New("ai: provider returned no candidate text")

// Gateway produces the model's reply to a conversation. The transcript holds
// message contents in conversation order, without roles.
type Gateway interface {
	Complete(ctx context.Context, transcript []string) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface
type GatewayFunc func(ctx context.Context, transcript []string) (string, error)

// Complete calls f
func (f GatewayFunc) Complete(ctx context.Context, transcript []string) (string, error) {
	return f(ctx, transcript)
}

// Supported providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// Config selects and configures a provider
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// New builds the gateway for cfg.Provider
func New(ctx context.Context, cfg Config) (Gateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai: api key for provider %q is required", cfg.Provider)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		return NewGeminiGateway(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAIGateway(cfg), nil
	case ProviderArk:
		return NewArkGateway(ctx, cfg)
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.Provider)
	}
}
