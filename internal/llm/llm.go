package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collegecontent/internal/config"
	"collegecontent/internal/core"
)

// Provider identifies a model backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
	ProviderGrok   Provider = "grok"
	ProviderMock   Provider = "mock"
)

const (
	// DefaultTemperature is used by callers that have no stage-specific setting.
	DefaultTemperature = 0.7
	// DefaultMaxTokens is applied when a request leaves MaxTokens at zero.
	DefaultMaxTokens = 4000
	// GrokBaseURL is xAI's OpenAI-compatible endpoint.
	GrokBaseURL = "https://api.x.ai/v1"
	// ClaudeBaseURL is Anthropic's OpenAI-compatible endpoint.
	ClaudeBaseURL = "https://api.anthropic.com/v1/"
)

var providerAliases = map[string]Provider{
	"openai":    ProviderOpenAI,
	"gemini":    ProviderGemini,
	"google":    ProviderGemini,
	"claude":    ProviderClaude,
	"anthropic": ProviderClaude,
	"grok":      ProviderGrok,
	"xai":       ProviderGrok,
	"mock":      ProviderMock,
}

// ParseProvider maps a provider name or alias to a Provider.
func ParseProvider(name string) (Provider, error) {
	p, ok := providerAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", core.Errorf(core.KindInvalidArgument, "llm.ParseProvider",
			"unknown provider %q (supported: openai, gemini, claude, grok)", name)
	}
	return p, nil
}

// DefaultModel returns the model used when none is configured.
func (p Provider) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4-turbo-preview"
	case ProviderGemini:
		return "gemini-1.5-flash"
	case ProviderClaude:
		return "claude-3-sonnet-20240229"
	case ProviderGrok:
		return "grok-1"
	default:
		return "mock-model"
	}
}

// Providers lists the real backends.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderGemini, ProviderClaude, ProviderGrok}
}

// Request is one generation call.
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64 // Must be within [0, 2]
	MaxTokens    int     // Zero selects DefaultMaxTokens
}

// Validate checks request bounds.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return core.Errorf(core.KindInvalidArgument, "llm.Generate", "prompt is empty")
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return core.Errorf(core.KindInvalidArgument, "llm.Generate", "temperature %v outside [0, 2]", r.Temperature)
	}
	if r.MaxTokens < 0 {
		return core.Errorf(core.KindInvalidArgument, "llm.Generate", "max tokens must be positive, got %d", r.MaxTokens)
	}
	return nil
}

func (r Request) maxTokens() int {
	if r.MaxTokens == 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// Gateway is the uniform capability every backend implements. Calls are
// blocking round-trips; a failed call may still have been billed.
type Gateway interface {
	Generate(ctx context.Context, req Request) (string, error)
	TestConnection(ctx context.Context) bool
	Provider() Provider
	Model() string
}

// Settings selects and configures a backend.
type Settings struct {
	Provider Provider
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// SettingsFromConfig resolves settings for provider (or the configured
// provider when empty) and model (or the configured/default model).
func SettingsFromConfig(cfg config.LLM, provider, model string) (Settings, error) {
	if provider == "" {
		provider = cfg.Provider
	}
	p, err := ParseProvider(provider)
	if err != nil {
		return Settings{}, err
	}
	if model == "" && strings.EqualFold(provider, cfg.Provider) {
		model = cfg.Model
	}
	if model == "" {
		model = p.DefaultModel()
	}
	creds := cfg.Credentials(string(p))
	return Settings{
		Provider: p,
		Model:    model,
		APIKey:   creds.APIKey,
		BaseURL:  creds.BaseURL,
		Timeout:  config.ParseDuration(cfg.Timeout, 120*time.Second),
	}, nil
}

// New creates the gateway for s.Provider.
func New(ctx context.Context, s Settings) (Gateway, error) {
	if s.Model == "" {
		s.Model = s.Provider.DefaultModel()
	}
	if s.Provider != ProviderMock && s.APIKey == "" {
		return nil, core.Errorf(core.KindInvalidArgument, "llm.New",
			"%s API key is required; set it in the config file or environment", s.Provider)
	}

	switch s.Provider {
	case ProviderGemini:
		return newGeminiGateway(ctx, s)
	case ProviderOpenAI:
		return newOpenAIGateway(s, ""), nil
	case ProviderGrok:
		return newOpenAIGateway(s, GrokBaseURL), nil
	case ProviderClaude:
		return newOpenAIGateway(s, ClaudeBaseURL), nil
	case ProviderMock:
		return NewMockGateway(), nil
	default:
		return nil, core.Errorf(core.KindInvalidArgument, "llm.New", "unsupported provider %q", s.Provider)
	}
}

// Describe returns "provider/model" for logs and provenance.
func Describe(g Gateway) string {
	return fmt.Sprintf("%s/%s", g.Provider(), g.Model())
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
