package ai

import (
	"context"
	"fmt"

	openaiapi "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openaiapi.GPT4oMini

// OpenAIGateway sends every transcript entry as a user message
type OpenAIGateway struct {
	api   *openaiapi.Client
	model string
}

// NewOpenAIGateway creates a client; BaseURL points it at a compatible server
func NewOpenAIGateway(cfg Config) *OpenAIGateway {
	clientCfg := openaiapi.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIGateway{api: openaiapi.NewClientWithConfig(clientCfg), model: model}
}

func (g *OpenAIGateway) Complete(ctx context.Context, transcript []string) (string, error) {
	msgs := make([]openaiapi.ChatCompletionMessage, 0, len(transcript))
	for _, text := range transcript {
		msgs = append(msgs, openaiapi.ChatCompletionMessage{
			Role:    openaiapi.ChatMessageRoleUser,
			Content: text,
		})
	}

	resp, err := g.api.CreateChatCompletion(ctx, openaiapi.ChatCompletionRequest{
		Model:    g.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("ai: openai completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
