// Package feedback turns a transcript and its delivery metrics into
// short coaching feedback via an OpenAI-compatible chat endpoint.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/orato/coach-engine/internal/analysis"
	"github.com/orato/coach-engine/internal/metrics"
)

const systemPrompt = `You are a supportive public-speaking coach. Given a speech transcript and delivery metrics, respond with a JSON object containing:
  "summary": one or two sentences on the overall delivery,
  "strengths": up to three short bullet strings,
  "improvements": up to three short, actionable bullet strings,
  "tone": one word describing the speaker's tone.
Respond with JSON only.`

// Feedback is the structured coaching response stored alongside a recording.
type Feedback struct {
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Tone         string   `json:"tone,omitempty"`
}

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Log     zerolog.Logger
}

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		timeout: opts.Timeout,
		log:     opts.Log,
	}
}

// Generate requests coaching feedback for a transcript. The returned
// Feedback always has at least a Summary; if the model ignores the JSON
// instruction the raw content becomes the summary.
func (c *Client) Generate(ctx context.Context, transcript string, m analysis.Metrics) (*Feedback, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(transcript, m)},
		},
		Temperature: 0.4,
	})
	if err != nil {
		metrics.FeedbackRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("feedback request: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.FeedbackRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("feedback request: empty response")
	}

	metrics.FeedbackRequestsTotal.WithLabelValues("success").Inc()
	return parseFeedback(resp.Choices[0].Message.Content), nil
}

func userPrompt(transcript string, m analysis.Metrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript:\n%s\n\n", transcript)
	fmt.Fprintf(&b, "Metrics: %d words, %.1f words per minute, %d filler words",
		m.WordCount, m.WordsPerMinute, m.FillerCount)
	if len(m.Fillers) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(m.Fillers, ", "))
	}
	return b.String()
}

func parseFeedback(content string) *Feedback {
	content = strings.TrimSpace(content)

	// Models sometimes wrap JSON in a markdown fence.
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var fb Feedback
	if err := json.Unmarshal([]byte(content), &fb); err != nil || fb.Summary == "" {
		return &Feedback{Summary: content}
	}
	return &fb
}
