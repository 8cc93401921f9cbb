package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/orato/coach-engine/internal/analysis"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testMetrics() analysis.Metrics {
	return analysis.Metrics{WordCount: 7, WordsPerMinute: 7, FillerCount: 2, Fillers: []string{"um", "uh"}}
}

func TestGenerate_ParsesStructuredResponse(t *testing.T) {
	srv := chatServer(t, `{"summary":"Clear delivery.","strengths":["good pace"],"improvements":["fewer fillers"],"tone":"confident"}`)

	c := NewClient(Options{BaseURL: srv.URL + "/v1", APIKey: "test", Model: "gpt-4o-mini", Log: zerolog.Nop()})
	fb, err := c.Generate(context.Background(), "um so I think uh this works", testMetrics())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fb.Summary != "Clear delivery." {
		t.Errorf("summary = %q", fb.Summary)
	}
	if len(fb.Strengths) != 1 || fb.Strengths[0] != "good pace" {
		t.Errorf("strengths = %v", fb.Strengths)
	}
	if fb.Tone != "confident" {
		t.Errorf("tone = %q", fb.Tone)
	}
}

func TestGenerate_FencedJSON(t *testing.T) {
	srv := chatServer(t, "```json\n{\"summary\":\"Nice work.\",\"tone\":\"warm\"}\n```")

	c := NewClient(Options{BaseURL: srv.URL + "/v1", APIKey: "test", Model: "gpt-4o-mini", Log: zerolog.Nop()})
	fb, err := c.Generate(context.Background(), "hello", testMetrics())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fb.Summary != "Nice work." || fb.Tone != "warm" {
		t.Errorf("got %+v", fb)
	}
}

func TestGenerate_PlainTextFallsBackToSummary(t *testing.T) {
	srv := chatServer(t, "Your pacing was steady and easy to follow.")

	c := NewClient(Options{BaseURL: srv.URL + "/v1", APIKey: "test", Model: "gpt-4o-mini", Log: zerolog.Nop()})
	fb, err := c.Generate(context.Background(), "hello", testMetrics())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fb.Summary != "Your pacing was steady and easy to follow." {
		t.Errorf("summary = %q", fb.Summary)
	}
	if len(fb.Strengths) != 0 {
		t.Errorf("expected no strengths, got %v", fb.Strengths)
	}
}

func TestGenerate_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/v1", APIKey: "test", Model: "gpt-4o-mini", Timeout: 5 * time.Second, Log: zerolog.Nop()})
	if _, err := c.Generate(context.Background(), "hello", testMetrics()); err == nil {
		t.Fatal("expected error from 503 response")
	}
}
