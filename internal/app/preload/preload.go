// Package preload primes a hidden output with the upcoming track so queue
// transitions are gapless.
package preload

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/soundfold/playerd/internal/infra/audio"
)

// Manager holds at most one pending preload on a single hidden, muted
// output. Preloading is an optimization: every failure here is logged and
// swallowed, because the real Load at transition time surfaces the real
// error.
type Manager struct {
	mu      sync.Mutex
	factory func() (audio.Output, error)
	out     audio.Output
	failed  bool // factory failed once; stop trying for this session

	pendingID string
}

// NewManager creates a preload manager. The hidden output is created
// lazily on first use via the factory.
func NewManager(factory func() (audio.Output, error)) *Manager {
	return &Manager{factory: factory}
}

// NewDisabled creates a manager that never primes, for configurations
// with gapless preloading turned off.
func NewDisabled() *Manager {
	return &Manager{failed: true}
}

// Preload assigns the upcoming source to the hidden output and requests
// buffering without audible playback. A new call replaces interest in any
// previous preload.
func (m *Manager) Preload(trackID, sourceURL string) {
	if trackID == "" || sourceURL == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingID == trackID {
		return
	}

	if m.out == nil {
		if m.failed {
			return
		}
		out, err := m.factory()
		if err != nil {
			m.failed = true
			zlog.Debug().Err(err).Msg("preload: hidden output unavailable, disabling preload")
			return
		}
		out.SetVolume(0)
		m.out = out
	}

	if err := m.out.Load(trackID, sourceURL); err != nil {
		zlog.Debug().Err(err).Str("track", trackID).Msg("preload: priming failed")
		m.pendingID = ""
		return
	}

	m.pendingID = trackID
}

// Pending returns the track ID currently primed, if any.
func (m *Manager) Pending() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingID, m.pendingID != ""
}

// Close releases the hidden output.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.out != nil {
		if err := m.out.Close(); err != nil {
			zlog.Debug().Err(err).Msg("preload: close failed")
		}
		m.out = nil
	}
	m.pendingID = ""
}
