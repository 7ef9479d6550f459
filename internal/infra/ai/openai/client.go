package openai

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
	"github.com/bryanwahyu/codeguardian/internal/infra/ai/prompt"
)

const maxTokens = 2048

const (
	defaultAttempts       = 3
	defaultAttemptTimeout = 15 * time.Second
	defaultBackoffBase    = 500 * time.Millisecond
)

// Client adapts the OpenAI chat API to the Verifier port. Transport
// failures are retried with exponential backoff; malformed output is not
// an error, it parses to an empty result.
type Client struct {
	*openai.Client
	Model          string
	Attempts       int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// Verify sends the composed audit prompt and parses the response into
// schema-validated findings. On transport exhaustion it returns
// ErrVerifierUnavailable; the caller degrades to static-only.
func (c *Client) Verify(ctx context.Context, payload domain.VerifyPayload) (domain.VerifierResult, error) {
	model := c.Model
	if model == "" {
		model = "o3-2025-04-16"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(payload)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	attempts := c.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	timeout := c.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	base := c.BackoffBase
	if base <= 0 {
		base = defaultBackoffBase
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, base, attempt); err != nil {
				return domain.VerifierResult{}, fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
			}
		}

		actx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := c.CreateChatCompletion(actx, req)
		cancel()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 {
			return domain.VerifierResult{}, nil
		}
		return ParseResult(resp.Choices[0].Message.Content), nil
	}

	return domain.VerifierResult{}, fmt.Errorf("%w after %d attempts: %v", domain.ErrVerifierUnavailable, attempts, lastErr)
}

// sleepBackoff waits base*2^(attempt-1) plus jitter, honoring cancellation.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base << (attempt - 1)
	delay += time.Duration(rand.Int63n(int64(base)))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
