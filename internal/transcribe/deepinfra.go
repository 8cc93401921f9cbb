package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const deepInfraBaseURL = "https://api.deepinfra.com/v1/inference/"

// DeepInfraClient calls DeepInfra's native inference API for Whisper
// models.
type DeepInfraClient struct {
	apiKey  string
	model   string // e.g. "openai/whisper-large-v3-turbo"
	baseURL string
	client  *http.Client
	desc    Descriptor
}

// DeepInfraRaw is the JSON response from the DeepInfra inference API.
type DeepInfraRaw struct {
	Text     string             `json:"text"`
	Language string             `json:"language"`
	Duration float64            `json:"duration"`
	Words    []DeepInfraWord    `json:"words"`
	Segments []DeepInfraSegment `json:"segments"`
}

func (*DeepInfraRaw) rawProvider() string { return "deepinfra" }

// DeepInfraWord is a word with timestamps from DeepInfra.
// Note: DeepInfra uses "text" for the word field, not "word" like OpenAI.
type DeepInfraWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// DeepInfraSegment is a segment-level timestamp from DeepInfra, used as
// fallback when word-level timestamps are not returned.
type DeepInfraSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewDeepInfraClient creates a DeepInfra inference client.
func NewDeepInfraClient(apiKey, model string, timeout time.Duration, priority int) *DeepInfraClient {
	return &DeepInfraClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: deepInfraBaseURL,
		client:  &http.Client{Timeout: timeout},
		desc: Descriptor{
			ID:       "deepinfra",
			Label:    "DeepInfra",
			Kind:     KindSync,
			Priority: priority,
		},
	}
}

// Descriptor returns the provider metadata.
func (di *DeepInfraClient) Descriptor() Descriptor { return di.desc }

// Transcribe sends the clip to DeepInfra's inference API. Uses
// multipart/form-data with field name "audio" (DeepInfra's convention).
func (di *DeepInfraClient) Transcribe(ctx context.Context, clip Clip) (Raw, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("audio", clipFilename(clip))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(clip.Data)); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	w.Close()

	// Endpoint: https://api.deepinfra.com/v1/inference/{model}
	url := di.baseURL + di.model

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+di.apiKey)

	resp, err := di.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepinfra request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepinfra API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result DeepInfraRaw
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
