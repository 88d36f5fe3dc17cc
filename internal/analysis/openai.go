package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	maxErrorBodyBytes    = 2048
	maxResponseBodyBytes = 4 << 20
)

// OpenAIOptions configures the chat-completions backend.
type OpenAIOptions struct {
	APIURL    string
	APIKey    string
	Model     string
	Prompt    string
	MaxTokens int
	Timeout   time.Duration
	Pricing   Pricing
}

// OpenAIGateway sends screenshots to an OpenAI-compatible chat-completions endpoint.
type OpenAIGateway struct {
	opts   OpenAIOptions
	client *http.Client
	now    func() time.Time
}

// NewOpenAIGateway constructs an OpenAIGateway. client may be nil.
func NewOpenAIGateway(opts OpenAIOptions, client *http.Client) *OpenAIGateway {
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &OpenAIGateway{opts: opts, client: client, now: time.Now}
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string     `json:"role"`
	Content []chatPart `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// Analyze implements Gateway.
func (g *OpenAIGateway) Analyze(ctx context.Context, image []byte) (*Outcome, error) {
	if g == nil {
		return nil, fmt.Errorf("analysis openai: gateway not initialized")
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("analysis openai: empty image")
	}
	if strings.TrimSpace(g.opts.APIKey) == "" {
		return nil, fmt.Errorf("analysis openai: missing api key")
	}

	dataURL := "data:" + imageMIME(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
	payload := chatRequest{
		Model:     g.opts.Model,
		MaxTokens: g.opts.MaxTokens,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatPart{
				{Type: "text", Text: g.opts.Prompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			},
		}},
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return nil, fmt.Errorf("analysis openai: encode request: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.APIURL, bytes.NewReader(body))
	if errReq != nil {
		return nil, fmt.Errorf("analysis openai: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.opts.APIKey)

	resp, errDo := g.client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("analysis openai: request failed: %w", errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("analysis openai: close response body failed")
		}
	}()

	respBody, errRead := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes+1))
	if errRead != nil {
		return nil, fmt.Errorf("analysis openai: read response: %w", errRead)
	}
	if len(respBody) > maxResponseBodyBytes {
		return nil, fmt.Errorf("analysis openai: response exceeds %d bytes", maxResponseBodyBytes)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet := respBody
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return nil, fmt.Errorf("analysis openai: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return g.parseResponse(ctx, respBody)
}

func (g *OpenAIGateway) parseResponse(ctx context.Context, body []byte) (*Outcome, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: response body is not json", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(body)
	choices := root.Get("choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}
	content := choices.Get("0.message.content").String()
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty message content", ErrEmptyResponse)
	}

	outcome, errParse := ParseExtraction(content, g.now())
	if errParse != nil {
		return nil, errParse
	}

	model := root.Get("model").String()
	if model == "" {
		model = g.opts.Model
	}
	outcome.Model = model
	outcome.Usage = Usage{
		PromptTokens:     int(root.Get("usage.prompt_tokens").Int()),
		CompletionTokens: int(root.Get("usage.completion_tokens").Int()),
		TotalTokens:      int(root.Get("usage.total_tokens").Int()),
	}
	if outcome.Usage.TotalTokens == 0 {
		outcome.Usage.TotalTokens = outcome.Usage.PromptTokens + outcome.Usage.CompletionTokens
	}
	outcome.Cost = g.opts.Pricing.Estimate(ctx, g.opts.Model, outcome.Usage)
	if outcome.Report != nil {
		outcome.Report.TokensUsed = outcome.Usage.TotalTokens
		outcome.Report.EstimatedCost = outcome.Cost
	}
	return outcome, nil
}

func imageMIME(image []byte) string {
	mime := http.DetectContentType(image)
	switch mime {
	case "image/png", "image/jpeg", "image/webp", "image/gif":
		return mime
	default:
		return "image/png"
	}
}
