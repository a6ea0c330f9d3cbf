// Package httpapi exposes the playback session and catalog over HTTP.
//
// The surface serves three site clients (mini player, expanded player,
// embed widget) plus the control CLI. State-changing endpoints require
// the control token; reads and the event stream are open so embeds can
// work without credentials.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/soundfold/playerd/internal/app/notification"
	"github.com/soundfold/playerd/internal/app/playback"
	"github.com/soundfold/playerd/internal/domain/track"
	"github.com/soundfold/playerd/internal/infra/catalog"
)

// Player is the slice of the playback session the HTTP surface drives.
// *playback.Session satisfies it.
type Player interface {
	SetQueue(tracks []track.Track, startIndex int, shuffled bool) error
	PlayAt(pos int) error
	Play() error
	Pause() error
	Next() error
	Previous() error
	Retry() error
	Seek(seconds float64) error
	SetVolume(v float64)
	SetPlaybackRate(r float64)
	Snapshot() playback.Snapshot
}

// Handler carries the collaborators behind the HTTP surface.
type Handler struct {
	player        Player
	catalog       catalog.Repository
	notifier      *notification.Manager
	controlToken  string
	allowedOrigin string
}

// Options configures the HTTP surface.
type Options struct {
	ControlToken  string
	AllowedOrigin string
}

// NewHandler creates the HTTP surface over the given collaborators.
func NewHandler(player Player, repo catalog.Repository, notifier *notification.Manager, opts Options) *Handler {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	return &Handler{
		player:        player,
		catalog:       repo,
		notifier:      notifier,
		controlToken:  opts.ControlToken,
		allowedOrigin: opts.AllowedOrigin,
	}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.corsMiddleware)

	// Player state and events are open reads.
	router.HandleFunc("/api/player/state", h.StateHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/player/events", h.EventsHandler).Methods(http.MethodGet)

	// Transport controls.
	router.HandleFunc("/api/player/play", h.authMiddleware(h.PlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/pause", h.authMiddleware(h.PauseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/next", h.authMiddleware(h.NextHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/previous", h.authMiddleware(h.PreviousHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/retry", h.authMiddleware(h.RetryHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/playat", h.authMiddleware(h.PlayAtHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/seek", h.authMiddleware(h.SeekHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/volume", h.authMiddleware(h.VolumeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/rate", h.authMiddleware(h.RateHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/queue", h.authMiddleware(h.QueueHandler)).Methods(http.MethodPost)

	// Catalog reads.
	router.HandleFunc("/api/tracks", h.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/featured", h.GetFeaturedTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", h.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/albums/{id}/tracks", h.GetAlbumTracksHandler).Methods(http.MethodGet)

	return router
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware guards state-changing endpoints with the control token.
func (h *Handler) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.controlToken == "" {
			next(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+h.controlToken {
			respondError(w, http.StatusUnauthorized, "invalid control token")
			return
		}
		next(w, r)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
