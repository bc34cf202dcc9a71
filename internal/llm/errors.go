package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"collegecontent/internal/core"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	"google.golang.org/api/googleapi"
)

// classify maps a backend error onto the generation failure kinds.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &core.Error{Kind: core.KindGenerationTimeout, Op: op, Msg: "model call timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &core.Error{Kind: core.KindGenerationTimeout, Op: op, Msg: "model call timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{Kind: core.KindGenerationFailed, Op: op, Msg: "model call cancelled", Err: err}
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &core.Error{Kind: core.KindGenerationRejected, Op: op, Msg: "blocked by safety filter", Err: err}
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return fromStatus(op, oaErr.StatusCode, err)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return fromStatus(op, gErr.Code, err)
	}

	return &core.Error{Kind: core.KindGenerationFailed, Op: op, Err: err, Temporary: isConnectionError(err)}
}

func fromStatus(op string, status int, err error) error {
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &core.Error{Kind: core.KindGenerationTimeout, Op: op, Err: err}
	case status == http.StatusTooManyRequests || status >= 500:
		return &core.Error{Kind: core.KindGenerationFailed, Op: op, Err: err, Temporary: true}
	case status == http.StatusBadRequest && mentionsPolicy(err):
		return &core.Error{Kind: core.KindGenerationRejected, Op: op, Err: err}
	default:
		return &core.Error{Kind: core.KindGenerationFailed, Op: op, Err: err}
	}
}

func mentionsPolicy(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"content_filter", "content policy", "safety", "content_policy_violation"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
