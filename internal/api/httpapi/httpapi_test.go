package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundfold/playerd/internal/app/notification"
	"github.com/soundfold/playerd/internal/app/playback"
	"github.com/soundfold/playerd/internal/domain/track"
	"github.com/soundfold/playerd/internal/infra/catalog"
)

type fakePlayer struct {
	snap playback.Snapshot

	playErr   error
	playCalls int
	pauses    int
	nexts     int
	playAt    []int
	playAtErr error
	seeks     []float64
	volumes   []float64
	rates     []float64

	queued        []track.Track
	queuedStart   int
	queuedShuffle bool
}

func (f *fakePlayer) SetQueue(tracks []track.Track, startIndex int, shuffled bool) error {
	f.queued = tracks
	f.queuedStart = startIndex
	f.queuedShuffle = shuffled
	if len(tracks) == 0 {
		return playback.ErrQueueEmpty
	}
	return nil
}

func (f *fakePlayer) PlayAt(pos int) error {
	f.playAt = append(f.playAt, pos)
	return f.playAtErr
}

func (f *fakePlayer) Play() error {
	f.playCalls++
	return f.playErr
}

func (f *fakePlayer) Pause() error                { f.pauses++; return nil }
func (f *fakePlayer) Next() error                 { f.nexts++; return nil }
func (f *fakePlayer) Previous() error             { return nil }
func (f *fakePlayer) Retry() error                { return nil }
func (f *fakePlayer) Seek(seconds float64) error  { f.seeks = append(f.seeks, seconds); return nil }
func (f *fakePlayer) SetVolume(v float64)         { f.volumes = append(f.volumes, v) }
func (f *fakePlayer) SetPlaybackRate(r float64)   { f.rates = append(f.rates, r) }
func (f *fakePlayer) Snapshot() playback.Snapshot { return f.snap }

type fakeCatalog struct {
	tracks   map[string]track.Track
	albums   map[string][]track.Track
	featured []track.Track
	all      []track.Track
	err      error
}

func (f *fakeCatalog) TrackByID(ctx context.Context, id string) (*track.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tracks[id]
	if !ok {
		return nil, catalog.ErrTrackNotFound
	}
	return &t, nil
}

func (f *fakeCatalog) TracksByAlbum(ctx context.Context, albumID string) ([]track.Track, error) {
	return f.albums[albumID], f.err
}

func (f *fakeCatalog) FeaturedTracks(ctx context.Context, limit int) ([]track.Track, error) {
	return f.featured, f.err
}

func (f *fakeCatalog) RecentTracks(ctx context.Context, limit int) ([]track.Track, error) {
	if limit > 0 && limit < len(f.all) {
		return f.all[:limit], f.err
	}
	return f.all, f.err
}

func (f *fakeCatalog) AllTracks(ctx context.Context) ([]track.Track, error) {
	return f.all, f.err
}

func (f *fakeCatalog) IncrementPlayCount(ctx context.Context, trackID string) error {
	return f.err
}

func testTracks() []track.Track {
	return []track.Track{
		{ID: "t1", Title: "One", Artist: "A", SourceURL: "https://cdn/t1.mp3", Duration: 3 * time.Minute},
		{ID: "t2", Title: "Two", Artist: "A", SourceURL: "https://cdn/t2.mp3", Duration: 2 * time.Minute},
		{ID: "t3", Title: "Three", Artist: "A", SourceURL: "https://cdn/t3.mp3", Duration: 4 * time.Minute},
	}
}

func newTestHandler(player *fakePlayer, repo *fakeCatalog) *Handler {
	return NewHandler(player, repo, notification.NewManager(), Options{ControlToken: "secret"})
}

func doRequest(h *Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestStateHandler(t *testing.T) {
	cur := testTracks()[0]
	player := &fakePlayer{snap: playback.Snapshot{
		State:       playback.StatePlaying,
		Track:       &cur,
		Index:       0,
		QueueLength: 3,
		Position:    12.5,
		Duration:    180,
		Volume:      0.8,
		Rate:        1.0,
	}}
	h := newTestHandler(player, &fakeCatalog{})

	rec := doRequest(h, http.MethodGet, "/api/player/state", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "playing", resp.State)
	require.NotNil(t, resp.Track)
	assert.Equal(t, "t1", resp.Track.ID)
	assert.Equal(t, "3:00", resp.Track.Duration)
	assert.Equal(t, 3, resp.QueueLength)
}

func TestControlEndpointsRequireToken(t *testing.T) {
	player := &fakePlayer{}
	h := newTestHandler(player, &fakeCatalog{})

	rec := doRequest(h, http.MethodPost, "/api/player/play", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, player.playCalls)

	rec = doRequest(h, http.MethodPost, "/api/player/play", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(h, http.MethodPost, "/api/player/play", "secret", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, player.playCalls)
}

func TestStateIsOpenWithoutToken(t *testing.T) {
	h := newTestHandler(&fakePlayer{}, &fakeCatalog{})
	rec := doRequest(h, http.MethodGet, "/api/player/state", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlayAtHandler(t *testing.T) {
	player := &fakePlayer{}
	h := newTestHandler(player, &fakeCatalog{})

	rec := doRequest(h, http.MethodPost, "/api/player/playat", "secret", map[string]any{"index": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{2}, player.playAt)
}

func TestPlayAtHandler_InvalidIndex(t *testing.T) {
	player := &fakePlayer{playAtErr: playback.ErrInvalidIndex}
	h := newTestHandler(player, &fakeCatalog{})

	rec := doRequest(h, http.MethodPost, "/api/player/playat", "secret", map[string]any{"index": 99})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransportError_EmptyQueueIsConflict(t *testing.T) {
	player := &fakePlayer{playErr: playback.ErrQueueEmpty}
	h := newTestHandler(player, &fakeCatalog{})

	rec := doRequest(h, http.MethodPost, "/api/player/play", "secret", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSeekAndVolumeHandlers(t *testing.T) {
	player := &fakePlayer{}
	h := newTestHandler(player, &fakeCatalog{})

	rec := doRequest(h, http.MethodPost, "/api/player/seek", "secret", map[string]any{"seconds": 42.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{42.5}, player.seeks)

	rec = doRequest(h, http.MethodPost, "/api/player/volume", "secret", map[string]any{"volume": 0.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{0.5}, player.volumes)

	rec = doRequest(h, http.MethodPost, "/api/player/rate", "secret", map[string]any{"rate": 1.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{1.5}, player.rates)
}

func TestQueueHandler_SingleTrack(t *testing.T) {
	player := &fakePlayer{}
	repo := &fakeCatalog{tracks: map[string]track.Track{"t1": testTracks()[0]}}
	h := newTestHandler(player, repo)

	rec := doRequest(h, http.MethodPost, "/api/player/queue", "secret",
		map[string]any{"source": "track", "id": "t1", "theme": "dark"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, player.queued, 1)
	assert.Equal(t, "t1", player.queued[0].ID)
	assert.False(t, player.queuedShuffle)
	assert.Zero(t, player.playCalls)

	var resp queueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dark", resp.Theme)
}

func TestQueueHandler_TrackNotFound(t *testing.T) {
	h := newTestHandler(&fakePlayer{}, &fakeCatalog{tracks: map[string]track.Track{}})
	rec := doRequest(h, http.MethodPost, "/api/player/queue", "secret",
		map[string]any{"source": "track", "id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueHandler_AlbumWithShuffleAndAutoplay(t *testing.T) {
	player := &fakePlayer{}
	repo := &fakeCatalog{albums: map[string][]track.Track{"a1": testTracks()}}
	h := newTestHandler(player, repo)

	rec := doRequest(h, http.MethodPost, "/api/player/queue", "secret",
		map[string]any{"source": "album", "id": "a1", "shuffle": true, "autoplay": true})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, player.queued, 3)
	assert.True(t, player.queuedShuffle)
	assert.Equal(t, 1, player.playCalls)
}

func TestQueueHandler_RadioAlwaysShuffles(t *testing.T) {
	player := &fakePlayer{}
	repo := &fakeCatalog{all: testTracks()}
	h := newTestHandler(player, repo)

	rec := doRequest(h, http.MethodPost, "/api/player/queue", "secret",
		map[string]any{"source": "radio", "shuffle": false})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, player.queued, 3)
	assert.True(t, player.queuedShuffle)
	assert.GreaterOrEqual(t, player.queuedStart, 0)
	assert.Less(t, player.queuedStart, 3)
}

func TestQueueHandler_UnknownSource(t *testing.T) {
	h := newTestHandler(&fakePlayer{}, &fakeCatalog{})
	rec := doRequest(h, http.MethodPost, "/api/player/queue", "secret",
		map[string]any{"source": "tape"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueHandler_EmptySource(t *testing.T) {
	h := newTestHandler(&fakePlayer{}, &fakeCatalog{albums: map[string][]track.Track{}})
	rec := doRequest(h, http.MethodPost, "/api/player/queue", "secret",
		map[string]any{"source": "album", "id": "empty"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTrackHandler(t *testing.T) {
	repo := &fakeCatalog{tracks: map[string]track.Track{"t1": testTracks()[0]}}
	h := newTestHandler(&fakePlayer{}, repo)

	rec := doRequest(h, http.MethodGet, "/api/tracks/t1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp trackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "One", resp.Title)
	assert.Equal(t, "3:00", resp.Duration)

	rec = doRequest(h, http.MethodGet, "/api/tracks/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTracksHandler_Limit(t *testing.T) {
	repo := &fakeCatalog{all: testTracks()}
	h := newTestHandler(&fakePlayer{}, repo)

	rec := doRequest(h, http.MethodGet, "/api/tracks?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []trackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestGetAlbumTracksHandler(t *testing.T) {
	repo := &fakeCatalog{albums: map[string][]track.Track{"a1": testTracks()}}
	h := newTestHandler(&fakePlayer{}, repo)

	rec := doRequest(h, http.MethodGet, "/api/albums/a1/tracks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []trackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 3)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(&fakePlayer{}, &fakeCatalog{})
	req := httptest.NewRequest(http.MethodOptions, "/api/player/play", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventsHandler_StreamsNotifications(t *testing.T) {
	notifier := notification.NewManager()
	h := NewHandler(&fakePlayer{snap: playback.Snapshot{State: playback.StateIdle, Index: -1}},
		&fakeCatalog{}, notifier, Options{})

	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/player/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// First frame is the snapshot.
	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first["type"])

	require.Eventually(t, func() bool { return notifier.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	notifier.Broadcast(&notification.Notification{Type: "state_changed", State: "playing"})

	var n notification.Notification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "state_changed", n.Type)
	assert.Equal(t, uint64(1), n.SequenceNo)
}
