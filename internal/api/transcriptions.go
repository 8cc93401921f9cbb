package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/orato/coach-engine/internal/analysis"
	"github.com/orato/coach-engine/internal/database"
	"github.com/orato/coach-engine/internal/feedback"
	"github.com/orato/coach-engine/internal/storage"
	"github.com/orato/coach-engine/internal/transcribe"
)

// Transcriber produces transcripts from audio clips, either via the
// fallback chain or by fanning out to every backend at once.
type Transcriber interface {
	Transcribe(ctx context.Context, clip transcribe.Clip) (*transcribe.Result, error)
	TranscribeAll(ctx context.Context, clip transcribe.Clip) map[string]transcribe.Outcome
}

// RecordingWriter persists analyzed recordings.
type RecordingWriter interface {
	InsertRecording(ctx context.Context, row *database.RecordingRow) (int64, error)
}

// FeedbackGenerator produces coaching feedback for a transcript. Optional.
type FeedbackGenerator interface {
	Generate(ctx context.Context, transcript string, m analysis.Metrics) (*feedback.Feedback, error)
}

// Notifier pushes completion events to connected clients. Optional.
type Notifier interface {
	RecordingComplete(userID string, payload any)
}

// TranscriptionHandler accepts audio uploads, runs them through the
// provider chain, computes delivery metrics and persists the result.
type TranscriptionHandler struct {
	transcriber Transcriber
	recordings  RecordingWriter
	store       storage.AudioStore
	lexicon     *analysis.LexiconSource
	feedback    FeedbackGenerator
	notifier    Notifier
	maxUploadMB int64
	log         zerolog.Logger
}

func NewTranscriptionHandler(
	transcriber Transcriber,
	recordings RecordingWriter,
	store storage.AudioStore,
	lexicon *analysis.LexiconSource,
	fb FeedbackGenerator,
	notifier Notifier,
	maxUploadMB int64,
	log zerolog.Logger,
) *TranscriptionHandler {
	return &TranscriptionHandler{
		transcriber: transcriber,
		recordings:  recordings,
		store:       store,
		lexicon:     lexicon,
		feedback:    fb,
		notifier:    notifier,
		maxUploadMB: maxUploadMB,
		log:         log.With().Str("handler", "transcriptions").Logger(),
	}
}

// Routes registers the transcription endpoint.
func (h *TranscriptionHandler) Routes(r chi.Router) {
	r.Post("/transcriptions", h.Create)
}

// BatchResponse is the body for ?mode=batch requests: every configured
// backend runs on the same clip and each one reports its own outcome.
type BatchResponse struct {
	Mode     string                        `json:"mode"`
	Outcomes map[string]transcribe.Outcome `json:"outcomes"`
}

// Create handles POST /api/v1/transcriptions.
// Expects a multipart form with an "audio" file, a "duration" value in
// seconds and a "user_id". With ?mode=batch the clip goes to every
// provider concurrently and nothing is persisted.
func (h *TranscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadMB << 20); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	clip, userID, err := h.parseUpload(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if mode, _ := QueryString(r, "mode"); mode == "batch" {
		outcomes := h.transcriber.TranscribeAll(r.Context(), clip)
		WriteJSON(w, http.StatusOK, BatchResponse{Mode: "batch", Outcomes: outcomes})
		return
	}

	result, err := h.transcriber.Transcribe(r.Context(), clip)
	if err != nil {
		var allFailed *transcribe.AllFailedError
		if errors.As(err, &allFailed) {
			h.log.Error().Str("user", userID).Int("providers", len(allFailed.Attempts)).
				Msg("every transcription provider failed")
			WriteJSON(w, http.StatusBadGateway, failureBody(allFailed))
			return
		}
		h.log.Error().Err(err).Str("user", userID).Msg("transcription failed")
		WriteError(w, http.StatusInternalServerError, "transcription failed")
		return
	}

	lex := h.lexicon.Current()
	m := analysis.Compute(result.Text, clip.Duration, lex)

	row := &database.RecordingRow{
		UserID:         userID,
		CreatedAt:      time.Now().UTC(),
		DurationSec:    clip.Duration,
		AudioMIME:      clip.MIME,
		Text:           result.Text,
		Provider:       result.Provider,
		Confidence:     result.Confidence,
		Language:       result.Language,
		UsedFallback:   result.UsedFallback,
		ElapsedMs:      result.ElapsedMs,
		WordCount:      m.WordCount,
		WordsPerMinute: m.WordsPerMinute,
		FillerCount:    m.FillerCount,
		Fillers:        m.Fillers,
		LexiconVersion: lex.Version,
	}

	if h.feedback != nil {
		fb, err := h.feedback.Generate(r.Context(), result.Text, m)
		if err != nil {
			// Feedback is a nice-to-have; the recording is still saved.
			h.log.Warn().Err(err).Str("user", userID).Msg("coaching feedback unavailable")
		} else if data, err := json.Marshal(fb); err == nil {
			row.Feedback = data
		}
	}

	row.AudioKey = h.archiveClip(r.Context(), userID, clip)

	id, err := h.recordings.InsertRecording(r.Context(), row)
	if err != nil {
		h.log.Error().Err(err).Str("user", userID).Msg("persist recording failed")
		WriteError(w, http.StatusInternalServerError, "failed to save recording")
		return
	}

	resp := recordingResponse(id, row)
	if h.notifier != nil {
		h.notifier.RecordingComplete(userID, resp)
	}

	WriteJSON(w, http.StatusCreated, resp)
}

// parseUpload extracts the audio clip and its metadata from the form.
func (h *TranscriptionHandler) parseUpload(r *http.Request) (transcribe.Clip, string, error) {
	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		return transcribe.Clip{}, "", fmt.Errorf("missing form field: user_id")
	}

	durStr := r.FormValue("duration")
	if durStr == "" {
		return transcribe.Clip{}, "", fmt.Errorf("missing form field: duration")
	}
	duration, err := strconv.ParseFloat(durStr, 64)
	if err != nil || duration < 0 {
		return transcribe.Clip{}, "", fmt.Errorf("invalid duration %q: must be seconds >= 0", durStr)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return transcribe.Clip{}, "", fmt.Errorf("missing audio file: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return transcribe.Clip{}, "", fmt.Errorf("failed to read audio file: %v", err)
	}
	if len(data) == 0 {
		return transcribe.Clip{}, "", fmt.Errorf("audio file is empty")
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			mimeType = byExt
		} else {
			mimeType = "audio/webm"
		}
	}

	return transcribe.Clip{Data: data, MIME: mimeType, Duration: duration}, userID, nil
}

// archiveClip stores the raw audio and returns its key, or "" if
// archiving failed or is disabled. Archive failures never fail the request.
func (h *TranscriptionHandler) archiveClip(ctx context.Context, userID string, clip transcribe.Clip) string {
	if h.store == nil {
		return ""
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("%s/%s/%d%s", userID, now.Format("2006-01-02"), now.UnixNano(), extFromMIME(clip.MIME))
	if err := h.store.Save(ctx, key, clip.Data, clip.MIME); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("audio archive failed")
		return ""
	}
	return key
}

func extFromMIME(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	case strings.Contains(mimeType, "ogg"):
		return ".ogg"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return ".m4a"
	default:
		return ".webm"
	}
}

// failureBody details every attempt of an exhausted fallback chain so
// clients can show which backends were tried and why each one failed.
func failureBody(allFailed *transcribe.AllFailedError) map[string]any {
	attempts := make([]map[string]any, 0, len(allFailed.Attempts))
	for _, a := range allFailed.Attempts {
		attempts = append(attempts, map[string]any{
			"provider":   a.Provider,
			"error":      a.Reason(),
			"elapsed_ms": a.Elapsed.Milliseconds(),
		})
	}
	return map[string]any{
		"error":    "all transcription providers failed",
		"attempts": attempts,
	}
}

func recordingResponse(id int64, row *database.RecordingRow) database.RecordingAPI {
	return database.RecordingAPI{
		ID:             id,
		UserID:         row.UserID,
		CreatedAt:      row.CreatedAt,
		DurationSec:    row.DurationSec,
		AudioKey:       row.AudioKey,
		AudioMIME:      row.AudioMIME,
		Text:           row.Text,
		Provider:       row.Provider,
		Confidence:     row.Confidence,
		Language:       row.Language,
		UsedFallback:   row.UsedFallback,
		ElapsedMs:      row.ElapsedMs,
		WordCount:      row.WordCount,
		WordsPerMinute: row.WordsPerMinute,
		FillerCount:    row.FillerCount,
		Fillers:        row.Fillers,
		LexiconVersion: row.LexiconVersion,
		Feedback:       row.Feedback,
	}
}
