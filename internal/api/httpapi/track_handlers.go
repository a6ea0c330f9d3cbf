package httpapi

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/soundfold/playerd/internal/domain/track"
	"github.com/soundfold/playerd/internal/infra/catalog"
)

// trackResponse is the wire form of a catalog track.
type trackResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	Duration   string `json:"duration"`
	PlayCount  int64  `json:"playCount"`
	Featured   bool   `json:"featured"`
}

func toTrackResponse(t track.Track) trackResponse {
	return trackResponse{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		ArtworkURL: t.ArtworkURL,
		Duration:   t.DisplayDuration(),
		PlayCount:  t.PlayCount,
		Featured:   t.Featured,
	}
}

func toTrackResponses(tracks []track.Track) []trackResponse {
	out := make([]trackResponse, len(tracks))
	for i, t := range tracks {
		out[i] = toTrackResponse(t)
	}
	return out
}

// GetTracksHandler lists catalog tracks, newest first. An optional
// ?limit=n caps the result.
func (h *Handler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	var (
		tracks []track.Track
		err    error
	)
	if limit > 0 {
		tracks, err = h.catalog.RecentTracks(r.Context(), limit)
	} else {
		tracks, err = h.catalog.AllTracks(r.Context())
	}
	if err != nil {
		zlog.Error().Err(err).Msg("failed to list tracks")
		respondError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	respondJSON(w, http.StatusOK, toTrackResponses(tracks))
}

// GetFeaturedTracksHandler lists the featured selection.
func (h *Handler) GetFeaturedTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.catalog.FeaturedTracks(r.Context(), parseLimit(r))
	if err != nil {
		zlog.Error().Err(err).Msg("failed to list featured tracks")
		respondError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	respondJSON(w, http.StatusOK, toTrackResponses(tracks))
}

// GetTrackHandler returns one track by id.
func (h *Handler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, err := h.catalog.TrackByID(r.Context(), id)
	if errors.Is(err, catalog.ErrTrackNotFound) {
		respondError(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		zlog.Error().Err(err).Str("track", id).Msg("failed to load track")
		respondError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	respondJSON(w, http.StatusOK, toTrackResponse(*t))
}

// GetAlbumTracksHandler lists an album's tracks in release order.
func (h *Handler) GetAlbumTracksHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tracks, err := h.catalog.TracksByAlbum(r.Context(), id)
	if err != nil {
		zlog.Error().Err(err).Str("album", id).Msg("failed to list album tracks")
		respondError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	respondJSON(w, http.StatusOK, toTrackResponses(tracks))
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
