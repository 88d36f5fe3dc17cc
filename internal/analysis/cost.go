package analysis

import "context"

// PriceSource resolves per-million token prices for a model.
type PriceSource interface {
	Prices(ctx context.Context, model string) (input, output float64, ok bool)
}

// Pricing holds per-million token prices with an optional dynamic source.
type Pricing struct {
	Source      PriceSource
	InputPrice  float64
	OutputPrice float64
}

// Estimate returns the cost of usage for model.
func (p Pricing) Estimate(ctx context.Context, model string, usage Usage) float64 {
	input, output := p.InputPrice, p.OutputPrice
	if p.Source != nil {
		if in, out, ok := p.Source.Prices(ctx, model); ok {
			input, output = in, out
		}
	}
	return float64(usage.PromptTokens)/1_000_000*input + float64(usage.CompletionTokens)/1_000_000*output
}
