package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/soundfold/playerd/internal/domain/track"
)

const (
	keyTrackPrefix = "catalog:track:"
	keyAlbumPrefix = "catalog:album:"
	keyFeatured    = "catalog:featured"
	keyRecent      = "catalog:recent"
	keyAll         = "catalog:all"
)

// cachedRepository is a redis read-through cache in front of a Repository.
// Every cache failure degrades to the underlying store; the cache can be
// down for the whole session without a visible effect beyond latency.
type cachedRepository struct {
	inner Repository
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedRepository wraps a repository with a redis read-through cache.
func NewCachedRepository(inner Repository, rdb *redis.Client, ttl time.Duration) Repository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &cachedRepository{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *cachedRepository) TrackByID(ctx context.Context, id string) (*track.Track, error) {
	key := keyTrackPrefix + id
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var t track.Track
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
	}

	t, err := c.inner.TrackByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, t)
	return t, nil
}

func (c *cachedRepository) TracksByAlbum(ctx context.Context, albumID string) ([]track.Track, error) {
	return c.list(ctx, keyAlbumPrefix+albumID, func(ctx context.Context) ([]track.Track, error) {
		return c.inner.TracksByAlbum(ctx, albumID)
	})
}

func (c *cachedRepository) FeaturedTracks(ctx context.Context, limit int) ([]track.Track, error) {
	// The limit is part of the key: different limits are different row sets.
	return c.list(ctx, keyFeatured+":"+strconv.Itoa(limit), func(ctx context.Context) ([]track.Track, error) {
		return c.inner.FeaturedTracks(ctx, limit)
	})
}

func (c *cachedRepository) RecentTracks(ctx context.Context, limit int) ([]track.Track, error) {
	return c.list(ctx, keyRecent+":"+strconv.Itoa(limit), func(ctx context.Context) ([]track.Track, error) {
		return c.inner.RecentTracks(ctx, limit)
	})
}

func (c *cachedRepository) AllTracks(ctx context.Context) ([]track.Track, error) {
	return c.list(ctx, keyAll, func(ctx context.Context) ([]track.Track, error) {
		return c.inner.AllTracks(ctx)
	})
}

func (c *cachedRepository) IncrementPlayCount(ctx context.Context, trackID string) error {
	err := c.inner.IncrementPlayCount(ctx, trackID)
	if err != nil {
		return err
	}
	// Drop the stale cached row; best effort.
	if derr := c.rdb.Del(ctx, keyTrackPrefix+trackID).Err(); derr != nil {
		zlog.Debug().Err(derr).Str("track", trackID).Msg("catalog: cache invalidation failed")
	}
	return nil
}

func (c *cachedRepository) list(ctx context.Context, key string, load func(context.Context) ([]track.Track, error)) ([]track.Track, error) {
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var tracks []track.Track
		if err := json.Unmarshal(raw, &tracks); err == nil {
			return tracks, nil
		}
	}

	tracks, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, tracks)
	return tracks, nil
}

func (c *cachedRepository) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		zlog.Debug().Err(err).Str("key", key).Msg("catalog: cache write failed")
	}
}
