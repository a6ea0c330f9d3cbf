package audio

import "sync"

// NullOutput is a silent output. It accepts the full transport contract,
// acknowledges loads immediately, and renders nothing. Used as the preload
// instance's fallback and when the daemon is built without an audio backend.
type NullOutput struct {
	mu      sync.Mutex
	handler Handler
	armedID string
	playing bool
	volume  float64
	rate    float64
}

// NewNull creates a null output.
func NewNull() *NullOutput {
	return &NullOutput{volume: 1.0, rate: 1.0}
}

// SetHandler registers the event handler.
func (o *NullOutput) SetHandler(h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handler = h
}

// Load arms the output with a new source and acknowledges it asynchronously.
func (o *NullOutput) Load(trackID, sourceURL string) error {
	o.mu.Lock()
	o.armedID = trackID
	o.playing = false
	h := o.handler
	o.mu.Unlock()

	if h != nil {
		go h.HandleCanPlay(trackID)
	}
	return nil
}

// Play reports playback without producing sound.
func (o *NullOutput) Play() error {
	o.mu.Lock()
	id := o.armedID
	already := o.playing
	o.playing = true
	h := o.handler
	o.mu.Unlock()

	if h != nil && id != "" && !already {
		go h.HandlePlay(id)
	}
	return nil
}

// Pause is synchronous and idempotent.
func (o *NullOutput) Pause() error {
	o.mu.Lock()
	id := o.armedID
	wasPlaying := o.playing
	o.playing = false
	h := o.handler
	o.mu.Unlock()

	if h != nil && id != "" && wasPlaying {
		go h.HandlePause(id)
	}
	return nil
}

// Seek is a no-op: a null output never learns a duration.
func (o *NullOutput) Seek(seconds float64) error {
	return nil
}

// SetVolume stores the clamped volume.
func (o *NullOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = clampVolume(v)
}

// Volume returns the stored volume.
func (o *NullOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// SetPlaybackRate stores the clamped playback rate.
func (o *NullOutput) SetPlaybackRate(r float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate = clampRate(r)
}

// PlaybackRate returns the stored playback rate.
func (o *NullOutput) PlaybackRate() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}

// Close drops the armed source.
func (o *NullOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.armedID = ""
	o.playing = false
	return nil
}
