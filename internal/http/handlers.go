package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"speech-capture-service/internal/audio"
	"speech-capture-service/internal/orchestrator"
	"speech-capture-service/internal/session"
)

// maxBodyBytes caps a single request body; sessions accumulate audio across
// many feeds, so one request never needs more than this.
const maxBodyBytes = 16 * 1024 * 1024

type sessionHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// createSessionRequest is the JSON body for POST /v1/sessions. Omitted fields
// fall back to the default recording profile.
type createSessionRequest struct {
	Encoding   string   `json:"encoding"`
	SampleRate int      `json:"sampleRate"`
	BitDepth   int      `json:"bitDepth"`
	Channels   int      `json:"channels"`
	Features   []string `json:"features"`
	Language   string   `json:"language"`
}

func (req createSessionRequest) toConfiguration() (audio.Configuration, error) {
	cfg := audio.Default()
	if req.Encoding != "" || req.SampleRate != 0 || req.BitDepth != 0 || req.Channels != 0 {
		encoding := cfg.Encoding
		if req.Encoding != "" {
			encoding = audio.Encoding(req.Encoding)
		}
		sampleRate := orDefault(req.SampleRate, cfg.SampleRate)
		bitDepth := orDefault(req.BitDepth, cfg.BitDepth)
		channels := orDefault(req.Channels, cfg.Channels)

		var err error
		cfg, err = audio.New(encoding, sampleRate, bitDepth, channels)
		if err != nil {
			return audio.Configuration{}, err
		}
	}

	features := make([]audio.Feature, 0, len(req.Features))
	for _, name := range req.Features {
		f, err := audio.ParseFeature(name)
		if err != nil {
			return audio.Configuration{}, err
		}
		features = append(features, f)
	}
	if len(features) > 0 {
		cfg = cfg.WithFeatures(features...)
	}
	if req.Language != "" {
		cfg = cfg.WithLanguage(req.Language)
	}
	return cfg, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	cfg, err := req.toConfiguration()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.orchestrator.CreateSession(r.Context(), cfg)
	if err != nil {
		// The session exists in ERROR; tell the caller which one so the
		// failure is inspectable.
		writeJSON(w, http.StatusBadGateway, snap)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orchestrator.SessionState(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *sessionHandler) feedAudio(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "audio chunk too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty audio chunk")
		return
	}

	snap, err := h.orchestrator.FeedAudio(r.Context(), chi.URLParam(r, "sessionID"), data)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *sessionHandler) stop(w http.ResponseWriter, r *http.Request) {
	trailing, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "trailing audio too large")
		return
	}

	result, err := h.orchestrator.StopSession(r.Context(), chi.URLParam(r, "sessionID"), trailing)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeOperationError maps the orchestrator's error taxonomy onto HTTP
// statuses.
func writeOperationError(w http.ResponseWriter, err error) {
	var (
		transErr    *session.TransitionError
		inactiveErr *session.InactiveSessionError
		limitErr    *session.AudioLimitError
	)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.As(err, &transErr), errors.As(err, &inactiveErr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &limitErr):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		log.Error().Err(err).Msg("Session operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
