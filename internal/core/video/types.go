package video

import (
	"time"
)

// Video holds metadata pulled from an external source.
type Video struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	VideoID      string    `gorm:"uniqueIndex;size:100;not null" json:"video_id"`
	Title        string    `gorm:"size:500;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	Source       string    `gorm:"index;size:20;not null" json:"source"`
	Duration     int       `json:"duration"`
	ThumbnailURL string    `gorm:"size:1000" json:"thumbnail_url,omitempty"`
	EmbedURL     string    `gorm:"size:1000" json:"embed_url,omitempty"`
	UploadDate   time.Time `gorm:"index" json:"upload_date"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Metadata     string    `gorm:"type:text" json:"metadata,omitempty"`
}

func (Video) TableName() string { return "videos" }

// Filter narrows video listings.
type Filter struct {
	Source         string
	UploadDateFrom *time.Time
	UploadDateTo   *time.Time
	MinDuration    *int
	MaxDuration    *int
	Limit          int
	Offset         int
}

// Stats is the aggregate served by the statistics endpoint.
type Stats struct {
	TotalVideos             int64              `json:"total_videos"`
	VideosBySource          map[string]int64   `json:"videos_by_source"`
	AverageDurationBySource map[string]float64 `json:"average_duration_by_source"`
	TotalDuration           int64              `json:"total_duration"`
	LastUpdated             time.Time          `json:"last_updated"`
}
