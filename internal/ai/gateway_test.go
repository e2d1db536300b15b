package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cooperative-ai/backend/pkg/logger"
	"cooperative-ai/backend/pkg/resilience"

	openaiapi "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGeminiModels struct {
	gotModel    string
	gotContents []*genai.Content
	resp        *genai.GenerateContentResponse
	err         error
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	return f.resp, f.err
}

func geminiResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGeminiGatewaySendsOneUserTurnOfRawStrings(t *testing.T) {
	fake := &fakeGeminiModels{resp: geminiResponse("hi there")}
	gw := &GeminiGateway{models: fake, model: "gemini-test"}

	reply, err := gw.Complete(context.Background(), []string{"hello", "earlier reply", "again"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, "gemini-test", fake.gotModel)

	require.Len(t, fake.gotContents, 1)
	assert.Equal(t, "user", fake.gotContents[0].Role)
	texts := make([]string, 0)
	for _, p := range fake.gotContents[0].Parts {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"hello", "earlier reply", "again"}, texts)
}

func TestGeminiGatewayMalformedResponses(t *testing.T) {
	cases := map[string]*genai.GenerateContentResponse{
		"nil response":  nil,
		"no candidates": {},
		"no content":    {Candidates: []*genai.Candidate{{}}},
		"no parts":      {Candidates: []*genai.Candidate{{Content: &genai.Content{}}}},
		"empty text":    geminiResponse(""),
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			gw := &GeminiGateway{models: &fakeGeminiModels{resp: resp}, model: "m"}
			_, err := gw.Complete(context.Background(), []string{"x"})
			assert.ErrorIs(t, err, ErrEmptyResponse)
		})
	}
}

func TestGeminiGatewayWrapsTransportError(t *testing.T) {
	boom := errors.New("quota exceeded")
	gw := &GeminiGateway{models: &fakeGeminiModels{err: boom}, model: "m"}

	_, err := gw.Complete(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
}

func TestOpenAIGatewayAgainstFakeServer(t *testing.T) {
	var got openaiapi.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openaiapi.ChatCompletionResponse{
			Choices: []openaiapi.ChatCompletionChoice{{
				Message: openaiapi.ChatCompletionMessage{Role: "assistant", Content: "pong"},
			}},
		})
	}))
	defer srv.Close()

	gw := NewOpenAIGateway(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-test"})
	reply, err := gw.Complete(context.Background(), []string{"ping", "pong?"})
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	for _, m := range got.Messages {
		assert.Equal(t, openaiapi.ChatMessageRoleUser, m.Role)
	}
	assert.Equal(t, "pong?", got.Messages[1].Content)
}

func TestOpenAIGatewayNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	gw := NewOpenAIGateway(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := gw.Complete(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Provider: "llama", APIKey: "k"})
	assert.Error(t, err)

	gw, err := New(context.Background(), Config{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGateway{}, gw)
}

func TestBreakerGatewayFailsFast(t *testing.T) {
	calls := 0
	boom := errors.New("down")
	inner := GatewayFunc(func(context.Context, []string) (string, error) {
		calls++
		return "", boom
	})
	cb := resilience.NewCircuitBreaker(resilience.Config{
		Name:             "ai",
		FailureThreshold: 1,
		RetryTimeout:     time.Hour,
	}, logger.Discard())
	gw := WithBreaker(inner, cb)

	_, err := gw.Complete(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)

	_, err = gw.Complete(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}

func TestInstrumentPassesThrough(t *testing.T) {
	inner := GatewayFunc(func(_ context.Context, transcript []string) (string, error) {
		return "echo:" + transcript[0], nil
	})
	gw := Instrument(inner, ProviderGemini)

	reply, err := gw.Complete(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "echo:a", reply)

	boom := errors.New("x")
	_, err = Instrument(GatewayFunc(func(context.Context, []string) (string, error) {
		return "", boom
	}), ProviderGemini).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}
