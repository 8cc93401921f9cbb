package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const huggingFaceBaseURL = "https://api-inference.huggingface.co/models/"

// HuggingFaceClient calls the Hugging Face serverless inference API for
// ASR models. The free tier makes this a useful fallback ahead of paid
// providers; cold models return 503 until loaded, which counts as a
// normal provider failure.
type HuggingFaceClient struct {
	apiKey  string
	model   string // e.g. "openai/whisper-large-v3"
	baseURL string
	client  *http.Client
	desc    Descriptor
}

// HuggingFaceRaw is the JSON response from the HF inference API.
// ASR pipelines return only the transcript text.
type HuggingFaceRaw struct {
	Text string `json:"text"`
}

func (*HuggingFaceRaw) rawProvider() string { return "huggingface" }

// NewHuggingFaceClient creates a Hugging Face inference client.
func NewHuggingFaceClient(apiKey, model string, timeout time.Duration, priority int) *HuggingFaceClient {
	return &HuggingFaceClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: huggingFaceBaseURL,
		client:  &http.Client{Timeout: timeout},
		desc: Descriptor{
			ID:       "huggingface",
			Label:    "Hugging Face Inference",
			Kind:     KindSync,
			Priority: priority,
		},
	}
}

// Descriptor returns the provider metadata.
func (hf *HuggingFaceClient) Descriptor() Descriptor { return hf.desc }

// Transcribe posts the raw audio bytes to the model endpoint. Unlike the
// OpenAI-style APIs this is not multipart: the body is the audio itself,
// typed by Content-Type.
func (hf *HuggingFaceClient) Transcribe(ctx context.Context, clip Clip) (Raw, error) {
	url := hf.baseURL + hf.model

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(clip.Data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", clip.MIME)
	req.Header.Set("Authorization", "Bearer "+hf.apiKey)

	resp, err := hf.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result HuggingFaceRaw
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
