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

// WhisperClient calls a self-hosted OpenAI-compatible
// /v1/audio/transcriptions endpoint. This is the "local model" slot of the
// registry: whether it exists at all is a configuration concern, not a
// control-flow branch.
type WhisperClient struct {
	url      string
	model    string
	language string
	client   *http.Client
	desc     Descriptor
}

// WhisperRaw is the parsed response from the Whisper API (verbose_json).
type WhisperRaw struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Duration float64       `json:"duration"`
	Words    []WhisperWord `json:"words"`
}

func (*WhisperRaw) rawProvider() string { return "whisper-local" }

// WhisperWord is a word with start/end timestamps from Whisper.
type WhisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewWhisperClient creates a Whisper HTTP client.
func NewWhisperClient(url, model string, timeout time.Duration, priority int) *WhisperClient {
	return &WhisperClient{
		url:      url,
		model:    model,
		language: "en",
		client:   &http.Client{Timeout: timeout},
		desc: Descriptor{
			ID:       "whisper-local",
			Label:    "Local Whisper",
			Kind:     KindSync,
			Priority: priority,
		},
	}
}

// Descriptor returns the provider metadata.
func (wc *WhisperClient) Descriptor() Descriptor { return wc.desc }

// Transcribe sends the clip to the Whisper API via multipart/form-data.
// Works with speaches, faster-whisper-server, or any OpenAI-compatible
// endpoint that ignores unknown form fields.
func (wc *WhisperClient) Transcribe(ctx context.Context, clip Clip) (Raw, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", clipFilename(clip))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(clip.Data)); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	if wc.model != "" {
		w.WriteField("model", wc.model)
	}
	w.WriteField("language", wc.language)

	// verbose_json for word-level timestamps
	w.WriteField("response_format", "verbose_json")
	w.WriteField("timestamp_granularities[]", "word")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := wc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result WhisperRaw
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// clipFilename derives an upload filename from the clip MIME type. Some
// endpoints sniff the extension rather than the Content-Type.
func clipFilename(clip Clip) string {
	switch clip.MIME {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "clip.wav"
	case "audio/mpeg", "audio/mp3":
		return "clip.mp3"
	case "audio/mp4", "audio/x-m4a":
		return "clip.m4a"
	case "audio/ogg":
		return "clip.ogg"
	case "audio/flac":
		return "clip.flac"
	default:
		return "clip.webm"
	}
}
