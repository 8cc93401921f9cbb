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

const assemblyAIBaseURL = "https://api.assemblyai.com"

// AssemblyAIClient calls the AssemblyAI transcription API. Unlike the
// other providers it is job based: upload the audio, create a transcript
// job, then poll it until a terminal status. The Poller drives the
// polling; this client only speaks the wire protocol.
type AssemblyAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	desc    Descriptor
}

// AssemblyAIRaw is the transcript resource returned by submit and poll
// calls. Status moves through queued|processing before completed|error.
type AssemblyAIRaw struct {
	ID            string           `json:"id"`
	Status        string           `json:"status"`
	Text          string           `json:"text"`
	Confidence    *float64         `json:"confidence"`
	LanguageCode  string           `json:"language_code"`
	AudioDuration float64          `json:"audio_duration"`
	Words         []AssemblyAIWord `json:"words"`
	Error         string           `json:"error"`
}

func (*AssemblyAIRaw) rawProvider() string { return "assemblyai" }

// AssemblyAIWord is a word with millisecond timestamps from AssemblyAI.
type AssemblyAIWord struct {
	Text    string  `json:"text"`
	StartMs int64   `json:"start"`
	EndMs   int64   `json:"end"`
	Conf    float64 `json:"confidence"`
}

type assemblyAIUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// NewAssemblyAIClient creates an AssemblyAI client.
func NewAssemblyAIClient(apiKey string, timeout time.Duration, priority int) *AssemblyAIClient {
	return &AssemblyAIClient{
		apiKey:  apiKey,
		baseURL: assemblyAIBaseURL,
		client:  &http.Client{Timeout: timeout},
		desc: Descriptor{
			ID:       "assemblyai",
			Label:    "AssemblyAI",
			Kind:     KindAsync,
			Priority: priority,
		},
	}
}

// Descriptor returns the provider metadata.
func (aa *AssemblyAIClient) Descriptor() Descriptor { return aa.desc }

// Submit uploads the clip and creates a transcript job, returning the
// provider-assigned job id.
func (aa *AssemblyAIClient) Submit(ctx context.Context, clip Clip) (string, error) {
	audioURL, err := aa.upload(ctx, clip)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		aa.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", aa.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var job AssemblyAIRaw
	if err := aa.do(req, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", &MalformedResponseError{Provider: aa.desc.ID, Field: "id"}
	}
	return job.ID, nil
}

// Poll fetches the current state of a transcript job.
func (aa *AssemblyAIClient) Poll(ctx context.Context, jobID string) (*JobUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		aa.baseURL+"/v2/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", aa.apiKey)

	var raw AssemblyAIRaw
	if err := aa.do(req, &raw); err != nil {
		return nil, err
	}

	return &JobUpdate{
		Status: raw.Status,
		Err:    raw.Error,
		Raw:    &raw,
	}, nil
}

// upload posts the raw audio bytes and returns the temporary audio URL
// used to create the transcript job.
func (aa *AssemblyAIClient) upload(ctx context.Context, clip Clip) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		aa.baseURL+"/v2/upload", bytes.NewReader(clip.Data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", aa.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out assemblyAIUploadResponse
	if err := aa.do(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", &MalformedResponseError{Provider: aa.desc.ID, Field: "upload_url"}
	}
	return out.UploadURL, nil
}

func (aa *AssemblyAIClient) do(req *http.Request, v any) error {
	resp, err := aa.client.Do(req)
	if err != nil {
		return fmt.Errorf("assemblyai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assemblyai API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
