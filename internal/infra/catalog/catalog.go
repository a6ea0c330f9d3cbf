// Package catalog provides the persistence collaborator for track data.
//
// The coordinator only reads from the catalog and requests play-count
// increments; it never mutates track rows. All calls tolerate transient
// failure: a broken catalog degrades browsing, never playback.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/soundfold/playerd/internal/domain/track"
)

// ErrTrackNotFound is returned when a track id has no row.
var ErrTrackNotFound = errors.New("track not found")

// Repository exposes the typed track queries the playback surfaces need.
type Repository interface {
	TrackByID(ctx context.Context, id string) (*track.Track, error)
	TracksByAlbum(ctx context.Context, albumID string) ([]track.Track, error)
	FeaturedTracks(ctx context.Context, limit int) ([]track.Track, error)
	RecentTracks(ctx context.Context, limit int) ([]track.Track, error)
	AllTracks(ctx context.Context) ([]track.Track, error)

	// IncrementPlayCount records one play. Eventually consistent; a failed
	// call is reported to the caller, which logs and moves on.
	IncrementPlayCount(ctx context.Context, trackID string) error
}
