package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/orato/coach-engine/internal/database"
	"github.com/orato/coach-engine/internal/storage"
)

// RecordingReader fetches persisted recordings scoped to a user.
type RecordingReader interface {
	GetRecording(ctx context.Context, id int64, userID string) (*database.RecordingAPI, error)
	ListRecordings(ctx context.Context, userID string, limit, offset int) ([]database.RecordingAPI, int, error)
}

// RecordingsHandler serves the recording history API.
type RecordingsHandler struct {
	recordings RecordingReader
	store      storage.AudioStore
	log        zerolog.Logger
}

func NewRecordingsHandler(recordings RecordingReader, store storage.AudioStore, log zerolog.Logger) *RecordingsHandler {
	return &RecordingsHandler{
		recordings: recordings,
		store:      store,
		log:        log.With().Str("handler", "recordings").Logger(),
	}
}

// Routes registers the recording endpoints.
func (h *RecordingsHandler) Routes(r chi.Router) {
	r.Get("/recordings", h.List)
	r.Get("/recordings/{id}", h.Get)
}

// ListResponse wraps a page of recordings.
type ListResponse struct {
	Recordings []database.RecordingAPI `json:"recordings"`
	Total      int                     `json:"total"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
}

// List handles GET /api/v1/recordings?user_id=...&limit=...&offset=...
func (h *RecordingsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := QueryString(r, "user_id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "missing query parameter: user_id")
		return
	}

	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	recordings, total, err := h.recordings.ListRecordings(r.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		h.log.Error().Err(err).Str("user", userID).Msg("list recordings failed")
		WriteError(w, http.StatusInternalServerError, "failed to list recordings")
		return
	}

	WriteJSON(w, http.StatusOK, ListResponse{
		Recordings: recordings,
		Total:      total,
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
}

// RecordingResponse is a single recording plus a short-lived audio URL
// when the archive backend can mint one.
type RecordingResponse struct {
	database.RecordingAPI
	AudioURL string `json:"audio_url,omitempty"`
}

// Get handles GET /api/v1/recordings/{id}?user_id=...
func (h *RecordingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := QueryString(r, "user_id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "missing query parameter: user_id")
		return
	}

	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid recording id")
		return
	}

	rec, err := h.recordings.GetRecording(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "recording not found")
			return
		}
		h.log.Error().Err(err).Int64("id", id).Msg("get recording failed")
		WriteError(w, http.StatusInternalServerError, "failed to fetch recording")
		return
	}

	resp := RecordingResponse{RecordingAPI: *rec}
	if h.store != nil && rec.AudioKey != "" {
		if url, err := h.store.URL(r.Context(), rec.AudioKey); err == nil {
			resp.AudioURL = url
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}
