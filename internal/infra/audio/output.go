// Package audio provides the output adapter over the platform audio backend.
//
// Exactly one sounding output exists per playback session; the preload
// manager holds a second, muted instance. Only the session controller
// issues transport commands.
package audio

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
)

// ErrPlaybackRejected is returned by Play when the platform refuses
// autonomous playback. Callers surface it as "tap to play", never crash.
var ErrPlaybackRejected = errors.New("playback rejected by platform policy")

// ErrBackendUnavailable is returned when the requested backend is not
// compiled in or cannot be initialized.
var ErrBackendUnavailable = errors.New("audio backend unavailable")

// ErrorKind classifies track-fatal adapter errors, mapped from the
// backend's numeric error codes.
type ErrorKind int

const (
	KindAborted ErrorKind = iota
	KindNetwork
	KindDecode
	KindFormatUnsupported
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindAborted:
		return "aborted"
	case KindNetwork:
		return "network_error"
	case KindDecode:
		return "decode_error"
	case KindFormatUnsupported:
		return "format_unsupported"
	default:
		return "unknown"
	}
}

// Handler receives normalized backend events. Every event carries the
// track ID the output was armed with at Load time, so a consumer can
// reject events from a source it has already swapped away from.
type Handler interface {
	HandleTimeUpdate(trackID string, position, duration float64)
	HandleBuffering(trackID string, waiting bool)
	HandleCanPlay(trackID string)
	HandlePlay(trackID string)
	HandlePause(trackID string)
	HandleEnded(trackID string)
	HandleError(trackID string, kind ErrorKind)
}

// Output is the transport contract over one audio-rendering backend.
//
// Load assigns a new source without auto-playing. Play is an asynchronous
// start request that may fail with ErrPlaybackRejected. Pause is
// synchronous and idempotent. Seek clamps to [0, duration] and is a no-op
// while the duration is unknown. SetVolume clamps to [0,1] and persists
// across track changes. SetPlaybackRate clamps to [0.5, 2.0].
type Output interface {
	Load(trackID, sourceURL string) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(v float64)
	Volume() float64
	SetPlaybackRate(r float64)
	PlaybackRate() float64
	SetHandler(h Handler)
	Close() error
}

// Options configure a backend instance. Decoded from the loose settings
// map in the configuration file.
type Options struct {
	Device    string `mapstructure:"device"`    // backend audio device, empty for default
	Normalize bool   `mapstructure:"normalize"` // loudness normalization (best-effort)
	Muted     bool   `mapstructure:"muted"`     // silent instance, used for preloading
}

// DecodeOptions decodes backend options from a settings map.
func DecodeOptions(settings map[string]any) (Options, error) {
	var opts Options
	if err := mapstructure.Decode(settings, &opts); err != nil {
		return Options{}, errors.Wrap(err, "failed to decode output settings")
	}
	return opts, nil
}

// New creates an output of the given type. Type "mpv" requires the libmpv
// build tag; type "null" is always available.
func New(outputType string, opts Options) (Output, error) {
	switch outputType {
	case "mpv":
		return newMPVOutput(opts)
	case "null":
		return NewNull(), nil
	default:
		return nil, errors.Newf("unknown output type: %s", outputType)
	}
}

// clampVolume clamps a volume into [0, 1].
func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampRate clamps a playback rate into [0.5, 2.0].
func clampRate(r float64) float64 {
	if r < 0.5 {
		return 0.5
	}
	if r > 2.0 {
		return 2.0
	}
	return r
}

// normalizedGain returns the adaptive gain boost applied when loudness
// normalization is enabled: gain = 1.0 + 0.1 * volume.
func normalizedGain(volume float64) float64 {
	return 1.0 + 0.1*volume
}
