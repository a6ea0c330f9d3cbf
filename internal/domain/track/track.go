// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// Track represents a playable track from the artist catalog.
// The playback coordinator treats it as an immutable value; play-count
// increments go through the catalog, never through local mutation.
type Track struct {
	ID         string        // Catalog track ID
	Title      string        // Display title
	Artist     string        // Primary artist label
	Album      string        // Album name (may be empty for singles)
	ArtworkURL string        // Cover art URL (may be empty)
	SourceURL  string        // Playable source URL (empty for externally-hosted-only entries)
	Duration   time.Duration // Catalog-reported duration (authoritative duration comes from the output)
	PlayCount  int64         // Recorded play count at fetch time
	Featured   bool          // Featured flag
	ReleasedAt time.Time     // Release date, used for recency ordering
}

// HasSource reports whether the track has a playable source.
// Tracks without one can be listed but never loaded into the output.
func (t *Track) HasSource() bool {
	return t.SourceURL != ""
}

// DisplayDuration returns the duration formatted as m:ss (or h:mm:ss).
func (t *Track) DisplayDuration() string {
	total := int(t.Duration.Seconds())
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
