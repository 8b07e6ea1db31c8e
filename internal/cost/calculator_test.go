package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculator_Claude(t *testing.T) {
	c := NewCalculator(Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {Input: 0.80, Output: 4.00},
		},
	})

	cost := c.Claude("claude-haiku-4-5-20251001", Usage{
		PromptTokens:     1_000_000,
		CompletionTokens: 500_000,
	})
	assert.InDelta(t, 0.80+2.00, cost, 1e-9)
}

func TestCalculator_Claude_UnknownModelIsFree(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.Zero(t, c.Claude("not-a-model", Usage{PromptTokens: 1_000_000}))
}

func TestCalculator_Render(t *testing.T) {
	c := NewCalculator(Rates{Render: RenderRate{PerPageLoad: 0.002}})
	assert.InDelta(t, 0.01, c.Render(5), 1e-9)
	assert.Zero(t, c.Render(0))
}

func TestDefaultRates_CoverConfiguredModels(t *testing.T) {
	rates := DefaultRates()
	for _, m := range []string{"claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929"} {
		_, ok := rates.Anthropic[m]
		assert.True(t, ok, "missing rate for %s", m)
	}
	assert.Positive(t, rates.Render.PerPageLoad)
}
