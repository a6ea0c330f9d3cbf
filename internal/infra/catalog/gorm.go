package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/soundfold/playerd/internal/domain/track"
)

// trackRecord is the database row for a track.
type trackRecord struct {
	ID         string    `gorm:"column:id;primaryKey;size:36"`
	Title      string    `gorm:"column:title"`
	Artist     string    `gorm:"column:artist"`
	AlbumID    string    `gorm:"column:album_id;index"`
	AlbumName  string    `gorm:"column:album_name"`
	ArtworkURL string    `gorm:"column:artwork_url"`
	SourceURL  string    `gorm:"column:source_url"`
	DurationMS int64     `gorm:"column:duration_ms"`
	PlayCount  int64     `gorm:"column:play_count"`
	Featured   bool      `gorm:"column:featured;index"`
	ReleasedAt time.Time `gorm:"column:released_at;index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

// TableName implements the gorm table naming convention.
func (trackRecord) TableName() string { return "tracks" }

func (r trackRecord) toDomain() track.Track {
	return track.Track{
		ID:         r.ID,
		Title:      r.Title,
		Artist:     r.Artist,
		Album:      r.AlbumName,
		ArtworkURL: r.ArtworkURL,
		SourceURL:  r.SourceURL,
		Duration:   time.Duration(r.DurationMS) * time.Millisecond,
		PlayCount:  r.PlayCount,
		Featured:   r.Featured,
		ReleasedAt: r.ReleasedAt,
	}
}

func toDomainSlice(records []trackRecord) []track.Track {
	tracks := make([]track.Track, len(records))
	for i, r := range records {
		tracks[i] = r.toDomain()
	}
	return tracks
}

// Open connects to the MySQL catalog and ensures the schema exists.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to catalog database")
	}
	if err := db.AutoMigrate(&trackRecord{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate catalog schema")
	}
	return db, nil
}

// gormRepository implements Repository on a MySQL database.
type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a Repository backed by the given database.
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) TrackByID(ctx context.Context, id string) (*track.Track, error) {
	var rec trackRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query track %s", id)
	}
	t := rec.toDomain()
	return &t, nil
}

func (r *gormRepository) TracksByAlbum(ctx context.Context, albumID string) ([]track.Track, error) {
	var records []trackRecord
	err := r.db.WithContext(ctx).
		Where("album_id = ?", albumID).
		Order("released_at ASC, title ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query album %s", albumID)
	}
	return toDomainSlice(records), nil
}

func (r *gormRepository) FeaturedTracks(ctx context.Context, limit int) ([]track.Track, error) {
	var records []trackRecord
	q := r.db.WithContext(ctx).
		Where("featured = ?", true).
		Order("released_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query featured tracks")
	}
	return toDomainSlice(records), nil
}

func (r *gormRepository) RecentTracks(ctx context.Context, limit int) ([]track.Track, error) {
	var records []trackRecord
	q := r.db.WithContext(ctx).Order("released_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query recent tracks")
	}
	return toDomainSlice(records), nil
}

func (r *gormRepository) AllTracks(ctx context.Context) ([]track.Track, error) {
	var records []trackRecord
	if err := r.db.WithContext(ctx).Order("released_at DESC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query all tracks")
	}
	return toDomainSlice(records), nil
}

func (r *gormRepository) IncrementPlayCount(ctx context.Context, trackID string) error {
	res := r.db.WithContext(ctx).
		Model(&trackRecord{}).
		Where("id = ?", trackID).
		UpdateColumn("play_count", gorm.Expr("play_count + ?", 1))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to increment play count for %s", trackID)
	}
	if res.RowsAffected == 0 {
		return ErrTrackNotFound
	}
	return nil
}
