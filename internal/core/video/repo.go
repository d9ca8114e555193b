package video

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("video not found")

// Repository is the persistence contract consumed by the import pipeline and
// the query service.
type Repository interface {
	FindExistingIDs(ctx context.Context, videoIDs []string) (map[string]struct{}, error)
	Save(ctx context.Context, v *Video) error
	FindByVideoID(ctx context.Context, videoID string) (*Video, error)
	Find(ctx context.Context, f Filter) ([]Video, int64, error)
	CountAll(ctx context.Context) (int64, error)
	CountBySource(ctx context.Context, source string) (int64, error)
	AverageDurationBySource(ctx context.Context, source string) (float64, error)
	TotalDuration(ctx context.Context) (int64, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository { return &GormRepository{db: db} }

func (r *GormRepository) FindExistingIDs(ctx context.Context, videoIDs []string) (map[string]struct{}, error) {
	if len(videoIDs) == 0 {
		return map[string]struct{}{}, nil
	}
	var found []string
	err := r.db.WithContext(ctx).
		Model(&Video{}).
		Where("video_id IN ?", videoIDs).
		Pluck("video_id", &found).Error
	if err != nil {
		return nil, fmt.Errorf("find existing video ids: %w", err)
	}
	existing := make(map[string]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}
	return existing, nil
}

func (r *GormRepository) Save(ctx context.Context, v *Video) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *GormRepository) FindByVideoID(ctx context.Context, videoID string) (*Video, error) {
	var v Video
	err := r.db.WithContext(ctx).First(&v, "video_id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *GormRepository) Find(ctx context.Context, f Filter) ([]Video, int64, error) {
	q := r.db.WithContext(ctx).Model(&Video{})
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.UploadDateFrom != nil {
		q = q.Where("upload_date >= ?", *f.UploadDateFrom)
	}
	if f.UploadDateTo != nil {
		q = q.Where("upload_date <= ?", *f.UploadDateTo)
	}
	if f.MinDuration != nil {
		q = q.Where("duration >= ?", *f.MinDuration)
	}
	if f.MaxDuration != nil {
		q = q.Where("duration <= ?", *f.MaxDuration)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var videos []Video
	err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&videos).Error
	if err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

func (r *GormRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Video{}).Count(&n).Error
	return n, err
}

func (r *GormRepository) CountBySource(ctx context.Context, source string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Video{}).Where("source = ?", source).Count(&n).Error
	return n, err
}

func (r *GormRepository) AverageDurationBySource(ctx context.Context, source string) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).Model(&Video{}).
		Where("source = ?", source).
		Select("AVG(duration)").
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}

func (r *GormRepository) TotalDuration(ctx context.Context) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).Model(&Video{}).
		Select("SUM(duration)").
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}
