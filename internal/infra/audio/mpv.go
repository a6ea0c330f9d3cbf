//go:build libmpv

package audio

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	mpv "github.com/gen2brain/go-mpv"
)

const (
	mpvPauseProperty     = "pause"
	mpvVolumeProperty    = "volume"
	mpvSpeedProperty     = "speed"
	mpvPositionProperty  = "time-pos"
	mpvDurationProperty  = "duration"
	mpvBufferingProperty = "paused-for-cache"
)

// mpvOutput renders audio through libmpv.
type mpvOutput struct {
	mu      sync.Mutex
	client  *mpv.Mpv
	handler Handler
	opts    Options

	armedID  string
	duration float64 // seconds; 0 until the backend reports it
	volume   float64
	rate     float64

	closeOnce   sync.Once
	closed      chan struct{}
	eventLoopWG sync.WaitGroup
}

func newMPVOutput(opts Options) (Output, error) {
	client := mpv.New()
	if client == nil {
		return nil, errors.Wrap(ErrBackendUnavailable, "create libmpv instance")
	}

	_ = client.SetOptionString("terminal", "no")
	_ = client.SetOptionString("video", "no")
	_ = client.SetOptionString("audio-display", "no")
	_ = client.SetOptionString("keep-open", "no")
	if opts.Device != "" {
		_ = client.SetOptionString("audio-device", opts.Device)
	}
	if opts.Muted {
		_ = client.SetOptionString("mute", "yes")
	}

	if err := client.Initialize(); err != nil {
		client.TerminateDestroy()
		return nil, errors.Wrap(err, "initialize libmpv")
	}

	o := &mpvOutput{
		client: client,
		opts:   opts,
		volume: 1.0,
		rate:   1.0,
		closed: make(chan struct{}),
	}

	_ = client.RequestEvent(mpv.EventEnd, true)
	_ = client.ObserveProperty(0, mpvPositionProperty, mpv.FormatDouble)
	_ = client.ObserveProperty(0, mpvDurationProperty, mpv.FormatDouble)
	_ = client.ObserveProperty(0, mpvPauseProperty, mpv.FormatFlag)
	_ = client.ObserveProperty(0, mpvBufferingProperty, mpv.FormatFlag)

	o.applyVolumeLocked()

	o.eventLoopWG.Add(1)
	go o.eventLoop()

	return o, nil
}

func (o *mpvOutput) SetHandler(h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handler = h
}

// Load assigns a new source without auto-playing.
func (o *mpvOutput) Load(trackID, sourceURL string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.client.SetPropertyString(mpvPauseProperty, "yes"); err != nil {
		return errors.Wrap(err, "set pause before load")
	}
	if err := o.client.Command([]string{"loadfile", sourceURL, "replace"}); err != nil {
		return errors.Wrapf(err, "load source %q", sourceURL)
	}

	o.armedID = trackID
	o.duration = 0
	return nil
}

func (o *mpvOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.client.SetPropertyString(mpvPauseProperty, "no"); err != nil {
		return errors.Wrap(err, "resume playback")
	}
	return nil
}

func (o *mpvOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.client.SetPropertyString(mpvPauseProperty, "yes"); err != nil {
		return errors.Wrap(err, "pause playback")
	}
	return nil
}

// Seek clamps to [0, duration]. A no-op while the duration is unknown.
func (o *mpvOutput) Seek(seconds float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.duration <= 0 {
		return nil
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > o.duration {
		seconds = o.duration
	}
	if err := o.client.SetProperty(mpvPositionProperty, mpv.FormatDouble, seconds); err != nil {
		return errors.Wrap(err, "seek playback")
	}
	return nil
}

func (o *mpvOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = clampVolume(v)
	o.applyVolumeLocked()
}

func (o *mpvOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

func (o *mpvOutput) SetPlaybackRate(r float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate = clampRate(r)
	_ = o.client.SetProperty(mpvSpeedProperty, mpv.FormatDouble, o.rate)
}

func (o *mpvOutput) PlaybackRate() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}

func (o *mpvOutput) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		client := o.client
		o.armedID = ""
		o.mu.Unlock()

		if client != nil {
			client.Wakeup()
			client.TerminateDestroy()
		}

		o.eventLoopWG.Wait()
		close(o.closed)
	})

	<-o.closed
	return nil
}

// applyVolumeLocked pushes the stored volume to the backend, with the
// adaptive gain boost when normalization is enabled. mpv accepts volumes
// above 100, capped here at 130 to keep the boost inaudible as clipping.
func (o *mpvOutput) applyVolumeLocked() {
	vol := o.volume * 100
	if o.opts.Normalize {
		vol = math.Min(vol*normalizedGain(o.volume), 130)
	}
	_ = o.client.SetProperty(mpvVolumeProperty, mpv.FormatDouble, vol)
}

func (o *mpvOutput) eventLoop() {
	defer o.eventLoopWG.Done()

	for {
		event := o.client.WaitEvent(0.5)
		if event == nil {
			continue
		}

		switch event.EventID {
		case mpv.EventShutdown:
			return
		case mpv.EventFileLoaded:
			o.emit(func(h Handler, id string) { h.HandleCanPlay(id) })
		case mpv.EventEnd:
			end := event.EndFile()
			switch end.Reason {
			case mpv.EndFileEOF:
				o.emit(func(h Handler, id string) { h.HandleEnded(id) })
			case mpv.EndFileError:
				kind := classifyEndFileError(end.Error)
				o.emit(func(h Handler, id string) { h.HandleError(id, kind) })
			}
		case mpv.EventPropertyChange:
			o.handlePropertyChange(event.Property())
		}
	}
}

func (o *mpvOutput) handlePropertyChange(prop mpv.EventProperty) {
	switch prop.Name {
	case mpvPositionProperty:
		pos, ok := asFloat64(prop.Data)
		if !ok || math.IsNaN(pos) || pos < 0 {
			return
		}
		o.mu.Lock()
		dur := o.duration
		o.mu.Unlock()
		o.emit(func(h Handler, id string) { h.HandleTimeUpdate(id, pos, dur) })
	case mpvDurationProperty:
		dur, ok := asFloat64(prop.Data)
		if !ok || math.IsNaN(dur) || dur <= 0 {
			return
		}
		o.mu.Lock()
		o.duration = dur
		o.mu.Unlock()
	case mpvPauseProperty:
		paused, ok := prop.Data.(bool)
		if !ok {
			return
		}
		if paused {
			o.emit(func(h Handler, id string) { h.HandlePause(id) })
		} else {
			o.emit(func(h Handler, id string) { h.HandlePlay(id) })
		}
	case mpvBufferingProperty:
		waiting, ok := prop.Data.(bool)
		if !ok {
			return
		}
		o.emit(func(h Handler, id string) { h.HandleBuffering(id, waiting) })
	}
}

// emit invokes the handler outside the output mutex so handlers can call
// back into the output without deadlocking.
func (o *mpvOutput) emit(fn func(h Handler, trackID string)) {
	o.mu.Lock()
	h := o.handler
	id := o.armedID
	o.mu.Unlock()

	if h == nil || id == "" {
		return
	}
	fn(h, id)
}

// classifyEndFileError maps libmpv error codes onto the adapter taxonomy.
func classifyEndFileError(err error) ErrorKind {
	switch {
	case err == nil:
		return KindAborted
	case errors.Is(err, mpv.ErrLoadingFailed), errors.Is(err, mpv.ErrNothingToPlay):
		return KindNetwork
	case errors.Is(err, mpv.ErrUnknownFormat), errors.Is(err, mpv.ErrUnsupported):
		return KindFormatUnsupported
	case errors.Is(err, mpv.ErrGeneric):
		return KindDecode
	default:
		return KindDecode
	}
}

func asFloat64(value any) (float64, bool) {
	switch cast := value.(type) {
	case float64:
		return cast, true
	case float32:
		return float64(cast), true
	case int:
		return float64(cast), true
	case int64:
		return float64(cast), true
	default:
		return 0, false
	}
}
