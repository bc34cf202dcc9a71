package llm

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

// LoggedGateway wraps a Gateway and logs latency and estimated token usage
// for every call.
type LoggedGateway struct {
	next Gateway
}

// WithLogging decorates g.
func WithLogging(g Gateway) *LoggedGateway {
	return &LoggedGateway{next: g}
}

func (l *LoggedGateway) Provider() Provider { return l.next.Provider() }
func (l *LoggedGateway) Model() string      { return l.next.Model() }

// Generate forwards to the wrapped gateway.
func (l *LoggedGateway) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := l.next.Generate(ctx, req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		logger.Error("LLM generation failed", err,
			"provider", l.next.Provider(),
			"model", l.next.Model(),
			"kind", core.KindOf(err),
			"retryable", core.IsRetryable(err),
			"latency_ms", latency,
		)
		return "", err
	}

	logger.Debug("LLM generation completed",
		"provider", l.next.Provider(),
		"model", l.next.Model(),
		"temperature", req.Temperature,
		"max_tokens", req.maxTokens(),
		"prompt_tokens", EstimateTokens(req.SystemPrompt+req.Prompt),
		"completion_tokens", EstimateTokens(text),
		"latency_ms", latency,
	)
	return text, nil
}

// TestConnection forwards to the wrapped gateway.
func (l *LoggedGateway) TestConnection(ctx context.Context) bool {
	ok := l.next.TestConnection(ctx)
	logger.Info("LLM connection test", "provider", l.next.Provider(), "model", l.next.Model(), "ok", ok)
	return ok
}

// EstimateTokens approximates the token count of text at roughly 3.5
// characters per token.
func EstimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	text = strings.ReplaceAll(text, "\n", " ")
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 3.5))
}
