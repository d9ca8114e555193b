package video

import (
	"context"
	"time"

	"videometadata/internal/core/cache"
	"videometadata/internal/logger"
)

// SourceNames lists the registered source names. Satisfied by the source
// registry; declared here so this package stays below the adapter layer.
type SourceNames interface {
	Names() []string
}

// Service answers video queries and serves the statistics aggregate through
// the cache coordinator.
type Service struct {
	repo    Repository
	cache   *cache.Coordinator
	sources SourceNames
	log     *logger.Logger
}

func NewService(repo Repository, coordinator *cache.Coordinator, sources SourceNames) *Service {
	return &Service{repo: repo, cache: coordinator, sources: sources, log: logger.New("VideoService")}
}

func (s *Service) Find(ctx context.Context, f Filter) ([]Video, int64, error) {
	return s.repo.Find(ctx, f)
}

func (s *Service) FindByVideoID(ctx context.Context, videoID string) (*Video, error) {
	return s.repo.FindByVideoID(ctx, videoID)
}

// Statistics computes the aggregate, cached under an hour-bucket key so
// entries roll over naturally; imports evict the namespace explicitly.
func (s *Service) Statistics(ctx context.Context) (*Stats, error) {
	key := cache.HourKey("video-statistics")

	var cached Stats
	found, err := s.cache.Get(ctx, cache.NamespaceVideoStats, key, &cached)
	if err != nil {
		s.log.LogWarnf("stats cache read failed: %v", err)
	}
	if found {
		return &cached, nil
	}

	stats, err := s.computeStatistics(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, cache.NamespaceVideoStats, key, stats); err != nil {
		s.log.LogWarnf("stats cache write failed: %v", err)
	}
	return stats, nil
}

// WarmUpStatistics precomputes the aggregate; used by the cache warm-up
// endpoint.
func (s *Service) WarmUpStatistics(ctx context.Context) error {
	_, err := s.Statistics(ctx)
	return err
}

func (s *Service) computeStatistics(ctx context.Context) (*Stats, error) {
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	bySource := make(map[string]int64)
	avgBySource := make(map[string]float64)
	for _, name := range s.sources.Names() {
		count, err := s.repo.CountBySource(ctx, name)
		if err != nil {
			return nil, err
		}
		bySource[name] = count
		if count > 0 {
			avg, err := s.repo.AverageDurationBySource(ctx, name)
			if err != nil {
				return nil, err
			}
			avgBySource[name] = avg
		}
	}

	totalDuration, err := s.repo.TotalDuration(ctx)
	if err != nil {
		return nil, err
	}

	s.log.LogDebugf("generated statistics: total=%d duration=%ds", total, totalDuration)
	return &Stats{
		TotalVideos:             total,
		VideosBySource:          bySource,
		AverageDurationBySource: avgBySource,
		TotalDuration:           totalDuration,
		LastUpdated:             time.Now(),
	}, nil
}
