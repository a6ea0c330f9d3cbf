package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/soundfold/playerd/internal/app/notification"
)

const wsWriteTimeout = 5 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsStream adapts a websocket connection to the notification stream.
// Writes are serialized; the broadcast fan-out sends from many goroutines.
type wsStream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsStream) Send(n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(n)
}

// EventsHandler streams playback events over a websocket. The first
// message is a synthetic snapshot so late subscribers render immediately.
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	stream := &wsStream{conn: conn}
	snap := snapshotResponse(h.player.Snapshot())
	if err := conn.WriteJSON(map[string]any{"type": "snapshot", "state": snap}); err != nil {
		return
	}

	id := h.notifier.Subscribe(stream)
	defer h.notifier.Unsubscribe(id)
	zlog.Debug().Str("subscription", id).Msg("event stream opened")

	// Drain the reader so pings and close frames are processed. The
	// stream is one-way; any client payload is discarded.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			zlog.Debug().Str("subscription", id).Msg("event stream closed")
			return
		}
	}
}
