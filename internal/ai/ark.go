package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ArkGateway talks to a Volcengine Ark model through eino
type ArkGateway struct {
	chatModel model.BaseChatModel
}

// NewArkGateway creates the eino Ark chat model
func NewArkGateway(ctx context.Context, cfg Config) (*ArkGateway, error) {
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create ark model: %w", err)
	}
	return &ArkGateway{chatModel: chatModel}, nil
}

func (g *ArkGateway) Complete(ctx context.Context, transcript []string) (string, error) {
	messages := make([]*schema.Message, 0, len(transcript))
	for _, text := range transcript {
		messages = append(messages, schema.UserMessage(text))
	}

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("ai: ark generate: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}
