package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collegecontent/internal/core"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// geminiGateway talks to the Gemini API through the generative-ai-go SDK.
type geminiGateway struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func newGeminiGateway(ctx context.Context, s Settings) (*geminiGateway, error) {
	opts := []option.ClientOption{option.WithAPIKey(s.APIKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(s.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiGateway{client: client, model: s.Model, timeout: s.Timeout}, nil
}

func (g *geminiGateway) Provider() Provider { return ProviderGemini }
func (g *geminiGateway) Model() string      { return g.model }

// Generate sends a single GenerateContent call.
func (g *geminiGateway) Generate(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(req.Temperature))
	model.SetMaxOutputTokens(int32(req.maxTokens()))
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", classify(ctx, "llm.gemini", err)
	}
	return geminiText(resp)
}

// geminiText extracts the first candidate's text, turning safety blocks into
// rejections.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", core.Errorf(core.KindGenerationRejected, "llm.gemini", "empty response")
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
		return "", core.Errorf(core.KindGenerationRejected, "llm.gemini", "prompt blocked: %s", fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", core.Errorf(core.KindGenerationRejected, "llm.gemini", "response contained no candidates")
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", core.Errorf(core.KindGenerationRejected, "llm.gemini", "output blocked by safety filter")
	}

	var b strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", core.Errorf(core.KindGenerationRejected, "llm.gemini", "model returned no text (finish reason %s)", cand.FinishReason)
	}
	return text, nil
}

// TestConnection lists models, which does not consume generation quota.
func (g *geminiGateway) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err := g.client.ListModels(ctx).Next()
	return err == nil || err == iterator.Done
}

// Close releases the underlying client.
func (g *geminiGateway) Close() error {
	return g.client.Close()
}
