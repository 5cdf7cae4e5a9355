package anthropic

import "go.uber.org/zap"

// TokenUsage counts the tokens one call consumed, split by cache activity.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// modelRates holds dollars per million tokens. Cache writes bill at a
// quarter over the input rate, cache reads at a tenth of it.
type modelRates struct {
	input  float64
	output float64
}

const (
	cacheWriteSurcharge = 1.25
	cacheReadDiscount   = 0.10
)

var modelPricing = map[string]modelRates{
	"claude-haiku-4-5-20251001":  {input: 0.80, output: 4.00},
	"claude-sonnet-4-5-20250929": {input: 3.00, output: 15.00},
	"claude-opus-4-6":            {input: 15.00, output: 75.00},
}

// EstimateCost converts the usage into dollars for the given model, or 0
// when the model is not in the pricing table.
func (u TokenUsage) EstimateCost(model string) float64 {
	rates, ok := modelPricing[model]
	if !ok {
		return 0
	}
	perTok := func(n int64, rate float64) float64 {
		return float64(n) / 1e6 * rate
	}
	return perTok(u.InputTokens, rates.input) +
		perTok(u.OutputTokens, rates.output) +
		perTok(u.CacheCreationInputTokens, rates.input*cacheWriteSurcharge) +
		perTok(u.CacheReadInputTokens, rates.input*cacheReadDiscount)
}

// LogCost records the usage and its estimated dollar cost. phase labels the
// pipeline stage that made the call.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("anthropic: call cost",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
