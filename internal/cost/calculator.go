// Package cost accumulates token usage across all LLM calls in a run and
// converts it to dollars via a per-model rate table.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Render    RenderRate           `yaml:"render" mapstructure:"render"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// RenderRate holds browser-rendering-service pricing.
type RenderRate struct {
	PerPageLoad float64 `yaml:"per_page_load" mapstructure:"per_page_load"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of the given usage for a Claude model. Unknown
// models cost zero rather than failing a run over a pricing-table gap.
func (c *Calculator) Claude(model string, u Usage) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	inCost := (float64(u.PromptTokens) / 1e6) * rate.Input
	outCost := (float64(u.CompletionTokens) / 1e6) * rate.Output
	return inCost + outCost
}

// Render computes the cost of page loads through the rendering service.
func (c *Calculator) Render(pageLoads int) float64 {
	return float64(pageLoads) * c.rates.Render.PerPageLoad
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		Render: RenderRate{PerPageLoad: 0.002},
	}
}
