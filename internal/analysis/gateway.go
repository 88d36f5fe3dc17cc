package analysis

import (
	"context"
	"fmt"
	"io"

	"github.com/apexgirl/reportanalyzer/internal/config"
)

// New builds the Gateway selected by cfg.Provider. The returned Closer is
// non-nil and safe to close.
func New(ctx context.Context, cfg config.AnalysisConfig, prices PriceSource) (Gateway, io.Closer, error) {
	prompt, errPrompt := LoadPrompt(cfg.PromptPath)
	if errPrompt != nil {
		return nil, nil, errPrompt
	}
	pricing := Pricing{Source: prices, InputPrice: cfg.InputPrice, OutputPrice: cfg.OutputPrice}

	switch cfg.Provider {
	case config.ProviderGemini:
		gw, err := NewGeminiGateway(ctx, GeminiOptions{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Prompt:    prompt,
			MaxTokens: cfg.MaxTokens,
			Pricing:   pricing,
		})
		if err != nil {
			return nil, nil, err
		}
		return gw, gw, nil
	case config.ProviderOpenAI, "":
		gw := NewOpenAIGateway(OpenAIOptions{
			APIURL:    cfg.APIURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Prompt:    prompt,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout.Std(),
			Pricing:   pricing,
		}, nil)
		return gw, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("analysis: unknown provider %q", cfg.Provider)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
