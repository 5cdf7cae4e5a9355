package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/pkg/anthropic"
	"github.com/beanatlas/coffee-cli/pkg/deepseek"
)

// providerTemperature keeps extraction near-deterministic; both providers
// use the same value.
const providerTemperature = 0.1

// providerMaxTokens bounds replies; five short fields fit well within it.
const providerMaxTokens = 512

// Provider is one LLM backend able to fill missing product fields from page
// text. Providers are tried in order; the first parseable reply wins.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// deepseekProvider is the primary provider: OpenAI-compatible chat with
// response_format json_object, so replies arrive as bare JSON.
type deepseekProvider struct {
	client deepseek.Client
}

// NewDeepSeekProvider wraps a DeepSeek client as an enrichment provider.
// Model selection stays with the client's own configuration.
func NewDeepSeekProvider(client deepseek.Client) Provider {
	return &deepseekProvider{client: client}
}

func (p *deepseekProvider) Name() string { return "deepseek" }

func (p *deepseekProvider) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := float64(providerTemperature)
	maxTokens := providerMaxTokens
	resp, err := p.client.ChatCompletion(ctx, deepseek.ChatCompletionRequest{
		Messages: []deepseek.Message{
			{Role: "system", Content: systemText},
			{Role: "user", Content: prompt},
		},
		Temperature:    &temperature,
		MaxTokens:      &maxTokens,
		ResponseFormat: deepseek.JSONObject(),
	})
	if err != nil {
		return "", eris.Wrap(err, "enrich: deepseek completion")
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("enrich: deepseek returned no choices")
	}
	zap.L().Debug("enrich: deepseek usage",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// anthropicProvider is the fallback provider. The shared system text rides
// a cache breakpoint so consecutive per-candidate calls reuse the warm
// prompt cache.
type anthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicProvider wraps an Anthropic client as an enrichment provider.
func NewAnthropicProvider(client anthropic.Client, model string, maxTokens int64) Provider {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &anthropicProvider{client: client, model: model, maxTokens: maxTokens}
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := float64(providerTemperature)
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemText),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", eris.Wrap(err, "enrich: anthropic completion")
	}
	resp.Usage.LogCost(p.model, "enrichment")

	text := messageText(resp)
	if text == "" {
		return "", eris.New("enrich: anthropic returned no text content")
	}
	return text, nil
}

// messageText concatenates the text blocks of a message response.
func messageText(resp *anthropic.MessageResponse) string {
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
