package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash"

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGateway sends the transcript to Gemini as a single user turn with one
// text part per message
type GeminiGateway struct {
	models geminiModels
	model  string
}

// NewGeminiGateway creates a Gemini client for the Developer API backend
func NewGeminiGateway(ctx context.Context, cfg Config) (*GeminiGateway, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("ai: create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGateway{models: client.Models, model: model}, nil
}

func (g *GeminiGateway) Complete(ctx context.Context, transcript []string) (string, error) {
	parts := make([]*genai.Part, 0, len(transcript))
	for _, text := range transcript {
		parts = append(parts, &genai.Part{Text: text})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("ai: gemini generate: %w", err)
	}
	return geminiReply(resp)
}

// geminiReply returns the first text part of the first candidate
func geminiReply(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil || content.Parts[0].Text == "" {
		return "", ErrEmptyResponse
	}
	return content.Parts[0].Text, nil
}
