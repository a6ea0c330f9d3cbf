package httpapi

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/soundfold/playerd/internal/app/notification"
	"github.com/soundfold/playerd/internal/app/playback"
	"github.com/soundfold/playerd/internal/domain/track"
	"github.com/soundfold/playerd/internal/infra/catalog"
)

// stateResponse is the wire form of a session snapshot.
type stateResponse struct {
	State       string                  `json:"state"`
	Track       *notification.TrackInfo `json:"track,omitempty"`
	Index       int                     `json:"index"`
	QueueLength int                     `json:"queueLength"`
	Shuffled    bool                    `json:"shuffled"`
	Position    float64                 `json:"position"`
	Duration    float64                 `json:"duration"`
	Volume      float64                 `json:"volume"`
	Rate        float64                 `json:"rate"`
}

func snapshotResponse(snap playback.Snapshot) stateResponse {
	resp := stateResponse{
		State:       snap.State.String(),
		Index:       snap.Index,
		QueueLength: snap.QueueLength,
		Shuffled:    snap.Shuffled,
		Position:    snap.Position,
		Duration:    snap.Duration,
		Volume:      snap.Volume,
		Rate:        snap.Rate,
	}
	if snap.Track != nil {
		resp.Track = &notification.TrackInfo{
			ID:         snap.Track.ID,
			Title:      snap.Track.Title,
			Artist:     snap.Track.Artist,
			Album:      snap.Track.Album,
			ArtworkURL: snap.Track.ArtworkURL,
			Duration:   snap.Track.DisplayDuration(),
		}
	}
	return resp
}

// StateHandler returns the now-playing snapshot.
func (h *Handler) StateHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, snapshotResponse(h.player.Snapshot()))
}

// PlayHandler resumes or starts playback.
func (h *Handler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransport(w, h.player.Play)
}

// PauseHandler pauses playback.
func (h *Handler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransport(w, h.player.Pause)
}

// NextHandler skips to the next queue entry.
func (h *Handler) NextHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransport(w, h.player.Next)
}

// PreviousHandler returns to the previous queue entry.
func (h *Handler) PreviousHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransport(w, h.player.Previous)
}

// RetryHandler reloads the current track after a failure.
func (h *Handler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransport(w, h.player.Retry)
}

// PlayAtHandler plays the queue entry at the requested position.
func (h *Handler) PlayAtHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.runTransport(w, func() error { return h.player.PlayAt(req.Index) })
}

// SeekHandler moves to an absolute position in the current track.
func (h *Handler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.runTransport(w, func() error { return h.player.Seek(req.Seconds) })
}

// VolumeHandler applies a clamped volume.
func (h *Handler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.player.SetVolume(req.Volume)
	respondJSON(w, http.StatusOK, snapshotResponse(h.player.Snapshot()))
}

// RateHandler applies a clamped playback rate.
func (h *Handler) RateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.player.SetPlaybackRate(req.Rate)
	respondJSON(w, http.StatusOK, snapshotResponse(h.player.Snapshot()))
}

// queueRequest selects a playback source for the session queue. Theme is
// an embed display hint: echoed back untouched, never interpreted here.
type queueRequest struct {
	Source   string `json:"source"`
	ID       string `json:"id,omitempty"`
	Shuffle  bool   `json:"shuffle"`
	Autoplay bool   `json:"autoplay"`
	Theme    string `json:"theme,omitempty"`
}

type queueResponse struct {
	stateResponse
	Theme string `json:"theme,omitempty"`
}

// QueueHandler replaces the session queue from a catalog source.
func (h *Handler) QueueHandler(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tracks, shuffled, err := h.resolveSource(r, req)
	if err != nil {
		if errors.Is(err, catalog.ErrTrackNotFound) {
			respondError(w, http.StatusNotFound, "track not found")
			return
		}
		if errors.Is(err, errUnknownSource) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}

	startIndex := 0
	if len(tracks) > 1 && req.Source == "radio" {
		startIndex = rand.Intn(len(tracks))
	}
	if err := h.player.SetQueue(tracks, startIndex, shuffled); err != nil {
		if errors.Is(err, playback.ErrQueueEmpty) {
			respondError(w, http.StatusNotFound, "source has no tracks")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.Autoplay && len(tracks) > 0 {
		if err := h.player.Play(); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	respondJSON(w, http.StatusOK, queueResponse{
		stateResponse: snapshotResponse(h.player.Snapshot()),
		Theme:         req.Theme,
	})
}

var errUnknownSource = errors.New("unknown queue source")

func (h *Handler) resolveSource(r *http.Request, req queueRequest) ([]track.Track, bool, error) {
	ctx := r.Context()
	switch req.Source {
	case "track":
		t, err := h.catalog.TrackByID(ctx, req.ID)
		if err != nil {
			return nil, false, err
		}
		return []track.Track{*t}, false, nil
	case "album":
		tracks, err := h.catalog.TracksByAlbum(ctx, req.ID)
		return tracks, req.Shuffle, err
	case "featured":
		tracks, err := h.catalog.FeaturedTracks(ctx, 0)
		return tracks, req.Shuffle, err
	case "radio":
		// Radio is the whole catalog on shuffle, always.
		tracks, err := h.catalog.AllTracks(ctx)
		return tracks, true, err
	default:
		return nil, false, errors.Wrapf(errUnknownSource, "%q", req.Source)
	}
}

// runTransport executes a transport call and answers with the fresh snapshot.
// Queue-empty and bad-index errors are client mistakes, not server faults.
func (h *Handler) runTransport(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		switch {
		case errors.Is(err, playback.ErrQueueEmpty), errors.Is(err, playback.ErrNoTrack):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, playback.ErrInvalidIndex):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, snapshotResponse(h.player.Snapshot()))
}
