package llm

import (
	"context"
	"strings"
	"time"

	"collegecontent/internal/core"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIGateway serves every backend that speaks the OpenAI chat
// completions protocol: OpenAI itself, xAI Grok and Anthropic's
// compatibility endpoint.
type openAIGateway struct {
	provider Provider
	model    string
	client   openai.Client
	timeout  time.Duration
}

func newOpenAIGateway(s Settings, defaultBaseURL string) *openAIGateway {
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(0),
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if s.Provider == ProviderClaude {
		// The models listing used by TestConnection authenticates with the
		// native Anthropic headers.
		opts = append(opts,
			option.WithHeader("x-api-key", s.APIKey),
			option.WithHeader("anthropic-version", "2023-06-01"),
		)
	}

	return &openAIGateway{
		provider: s.Provider,
		model:    s.Model,
		client:   openai.NewClient(opts...),
		timeout:  s.Timeout,
	}
}

func (g *openAIGateway) Provider() Provider { return g.provider }
func (g *openAIGateway) Model() string      { return g.model }

// Generate sends a single chat completion.
func (g *openAIGateway) Generate(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.maxTokens())),
	})
	if err != nil {
		return "", classify(ctx, "llm."+string(g.provider), err)
	}

	if len(resp.Choices) == 0 {
		return "", core.Errorf(core.KindGenerationRejected, "llm."+string(g.provider), "response contained no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", core.Errorf(core.KindGenerationRejected, "llm."+string(g.provider), "output blocked by content filter")
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", core.Errorf(core.KindGenerationRejected, "llm."+string(g.provider), "model returned no text (finish reason %q)", choice.FinishReason)
	}
	return text, nil
}

// TestConnection lists models, which does not consume generation quota.
func (g *openAIGateway) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err := g.client.Models.List(ctx)
	return err == nil
}
