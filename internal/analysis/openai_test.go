package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

type fixedPrices struct{ in, out float64 }

func (p fixedPrices) Prices(context.Context, string) (float64, float64, bool) {
	return p.in, p.out, true
}

func newTestGateway(t *testing.T, handler http.HandlerFunc, pricing Pricing) *OpenAIGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIGateway(OpenAIOptions{
		APIURL:    srv.URL,
		APIKey:    "sk-test",
		Model:     "gpt-4o-mini",
		Prompt:    "extract",
		MaxTokens: 1500,
		Pricing:   pricing,
	}, srv.Client())
}

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"model": "gpt-4o-mini-2024",
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]any{"prompt_tokens": 1000, "completion_tokens": 200, "total_tokens": 1200},
	})
	return string(body)
}

func TestOpenAIGateway_Success(t *testing.T) {
	var captured []byte
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		captured, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, chatResponse(`{"battleType":"Rally","player":{"username":"a"},"enemy":{"username":"b"}}`))
	}, Pricing{InputPrice: 0.2, OutputPrice: 0.8})

	outcome, err := gw.Analyze(context.Background(), pngHeader)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if outcome.Report == nil || outcome.Report.BattleType != "Rally" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Usage.TotalTokens != 1200 || outcome.Report.TokensUsed != 1200 {
		t.Fatalf("unexpected usage %+v", outcome.Usage)
	}
	wantCost := 1000.0/1_000_000*0.2 + 200.0/1_000_000*0.8
	if diff := outcome.Cost - wantCost; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected cost %v, got %v", wantCost, outcome.Cost)
	}

	req := gjson.ParseBytes(captured)
	if req.Get("model").String() != "gpt-4o-mini" || req.Get("max_tokens").Int() != 1500 {
		t.Fatalf("unexpected request %s", captured)
	}
	url := req.Get("messages.0.content.1.image_url.url").String()
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected image url prefix %.40s", url)
	}
}

func TestOpenAIGateway_PriceSourceOverridesDefaults(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatResponse(`{"invalid":true}`))
	}, Pricing{Source: fixedPrices{in: 1, out: 2}, InputPrice: 100, OutputPrice: 100})

	outcome, err := gw.Analyze(context.Background(), pngHeader)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !outcome.Invalid {
		t.Fatalf("expected invalid outcome")
	}
	wantCost := 1000.0/1_000_000*1 + 200.0/1_000_000*2
	if diff := outcome.Cost - wantCost; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected cost %v, got %v", wantCost, outcome.Cost)
	}
}

func TestOpenAIGateway_Failures(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}, Pricing{})
	if _, err := gw.Analyze(context.Background(), pngHeader); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}

	gw = newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}, Pricing{})
	if _, err := gw.Analyze(context.Background(), pngHeader); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}

	if _, err := gw.Analyze(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestOpenAIGateway_RejectsOversizedResponse(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"`)
		_, _ = io.WriteString(w, strings.Repeat("x", maxResponseBodyBytes))
		_, _ = io.WriteString(w, `"}}]}`)
	}, Pricing{})

	_, err := gw.Analyze(context.Background(), pngHeader)
	if err == nil || !strings.Contains(err.Error(), "response exceeds") {
		t.Fatalf("expected oversized response error, got %v", err)
	}
}
