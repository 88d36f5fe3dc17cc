package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GeminiOptions configures the Gemini backend.
type GeminiOptions struct {
	APIKey    string
	Model     string
	Prompt    string
	MaxTokens int
	Pricing   Pricing
}

// GeminiGateway sends screenshots to a Gemini multimodal model.
type GeminiGateway struct {
	opts   GeminiOptions
	client *genai.Client
	model  *genai.GenerativeModel
	now    func() time.Time
}

// NewGeminiGateway dials the Gemini API.
func NewGeminiGateway(ctx context.Context, opts GeminiOptions) (*GeminiGateway, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("analysis gemini: missing api key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("analysis gemini: create client: %w", err)
	}
	model := client.GenerativeModel(opts.Model)
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	model.ResponseMIMEType = "application/json"
	log.Infof("analysis gemini: client ready (model=%s)", opts.Model)
	return &GeminiGateway{opts: opts, client: client, model: model, now: time.Now}, nil
}

// Close releases the underlying client.
func (g *GeminiGateway) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Analyze implements Gateway.
func (g *GeminiGateway) Analyze(ctx context.Context, image []byte) (*Outcome, error) {
	if g == nil || g.model == nil {
		return nil, fmt.Errorf("analysis gemini: gateway not initialized")
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("analysis gemini: empty image")
	}
	resp, err := g.model.GenerateContent(ctx,
		genai.Text(g.opts.Prompt),
		genai.Blob{
			MIMEType: imageMIME(image),
			Data:     image,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("analysis gemini: generate content: %w", err)
	}
	return g.outcome(ctx, resp)
}

// outcome maps a generate-content response onto an Outcome.
func (g *GeminiGateway) outcome(ctx context.Context, resp *genai.GenerateContentResponse) (*Outcome, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, fmt.Errorf("%w: no text part", ErrEmptyResponse)
	}

	outcome, errParse := ParseExtraction(text.String(), g.now())
	if errParse != nil {
		return nil, errParse
	}
	outcome.Model = g.opts.Model
	if resp.UsageMetadata != nil {
		outcome.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	outcome.Cost = g.opts.Pricing.Estimate(ctx, g.opts.Model, outcome.Usage)
	if outcome.Report != nil {
		outcome.Report.TokensUsed = outcome.Usage.TotalTokens
		outcome.Report.EstimatedCost = outcome.Cost
	}
	return outcome, nil
}
