package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"videometadata/internal/core/video"
	"videometadata/internal/logger"
)

var mockTitles = []string{
	"Introduction to Distributed Systems",
	"Advanced Concurrency Patterns",
	"Microservices Architecture",
	"Container Orchestration Basics",
	"REST API Design",
	"Database Design Patterns",
	"Observability in Production",
	"Testing Strategies",
}

// MockAdapter generates deterministic metadata keyed off the video ID. It
// exists so the registry and the binary have a working source; data content
// is intentionally simple.
type MockAdapter struct {
	cfg SourceConfig
	log *logger.Logger
}

func NewMockAdapter(cfg SourceConfig) *MockAdapter {
	return &MockAdapter{cfg: cfg, log: logger.New("MockSource")}
}

func (m *MockAdapter) SourceName() string { return m.cfg.Name }
func (m *MockAdapter) IsAvailable() bool  { return m.cfg.Enabled }

func (m *MockAdapter) FetchOne(ctx context.Context, videoID string) (*video.Video, error) {
	if !m.cfg.Enabled {
		return nil, nil
	}
	if m.cfg.LatencyMs > 0 {
		select {
		case <-time.After(time.Duration(m.cfg.LatencyMs) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h := hashID(videoID)
	if m.cfg.FailureRate > 0 && float64(h%1000)/1000.0 < m.cfg.FailureRate {
		m.log.LogWarnf("simulated miss for video %s", videoID)
		return nil, nil
	}
	return m.generate(videoID, h), nil
}

func (m *MockAdapter) FetchBatch(ctx context.Context, videoIDs []string) ([]*video.Video, error) {
	out := make([]*video.Video, len(videoIDs))
	for i, id := range videoIDs {
		v, err := m.FetchOne(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MockAdapter) generate(videoID string, h uint32) *video.Video {
	title := mockTitles[h%uint32(len(mockTitles))]
	duration := int(h%3540) + 60
	uploaded := time.Now().AddDate(0, 0, -int(h%365))
	return &video.Video{
		VideoID:      videoID,
		Title:        title,
		Source:       m.cfg.Name,
		Duration:     duration,
		ThumbnailURL: fmt.Sprintf("https://mock.example.com/thumbnails/%s.jpg", videoID),
		EmbedURL:     fmt.Sprintf("https://mock.example.com/embed/%s", videoID),
		UploadDate:   uploaded,
		Metadata:     fmt.Sprintf(`{"viewCount":%d,"category":"Education","language":"en"}`, h%1000000),
	}
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}
