package moderation

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient returns nil when no API key is configured; the filter
// treats a nil client as moderation being unavailable.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.APIKey == "" {
		return nil
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

const rewriteSystemPrompt = `You rewrite messages exchanged between parties in a property purchase.
Rephrase the message into calm, professional language while preserving every factual point.
Reply with the rewritten message only, no commentary.`

func (c *OpenAIClient) Rewrite(ctx context.Context, content string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(rewriteSystemPrompt),
			openai.UserMessage(content),
		},
		MaxTokens: openai.Int(1000),
	})
	if err != nil {
		return "", fmt.Errorf("openai rewrite: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai rewrite: no choices in response")
	}
	rewritten := strings.TrimSpace(resp.Choices[0].Message.Content)
	if rewritten == "" {
		return "", fmt.Errorf("openai rewrite: empty response")
	}
	return rewritten, nil
}

func (c *OpenAIClient) Check(ctx context.Context, content string) (bool, error) {
	resp, err := c.client.Moderations.New(ctx, openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{
			OfString: openai.String(content),
		},
	})
	if err != nil {
		return false, fmt.Errorf("openai moderation: %w", err)
	}
	if len(resp.Results) == 0 {
		return false, fmt.Errorf("openai moderation: no results in response")
	}
	return resp.Results[0].Flagged, nil
}

func (c *OpenAIClient) Explain(ctx context.Context, stage, role string) (string, error) {
	prompt := fmt.Sprintf("Explain the %q stage of an English property purchase to a %s in two or three sentences. Plain language, no legal jargon.", stage, strings.ReplaceAll(role, "_", " "))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(500),
	})
	if err != nil {
		return "", fmt.Errorf("openai explain: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai explain: no choices in response")
	}
	explanation := strings.TrimSpace(resp.Choices[0].Message.Content)
	if explanation == "" {
		return "", fmt.Errorf("openai explain: empty response")
	}
	return explanation, nil
}
