package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	rds "videometadata/internal/platform/redis"

	"videometadata/internal/logger"
)

// Aggregate cache namespaces and their TTLs. Keys are prefixed with the
// namespace so a whole namespace can be invalidated at once.
const (
	NamespaceVideoStats = "video-stats"
	NamespaceJobStats   = "job-stats"
	NamespaceVideos     = "videos"
	NamespaceJobs       = "jobs"
)

var namespaceTTL = map[string]time.Duration{
	NamespaceVideoStats: 10 * time.Minute,
	NamespaceJobStats:   5 * time.Minute,
	NamespaceVideos:     time.Hour,
	NamespaceJobs:       15 * time.Minute,
}

var ErrUnknownNamespace = errors.New("unknown cache namespace")

// Coordinator owns derived-aggregate caching: TTL policy per namespace,
// explicit invalidation after imports, and namespace health reporting.
type Coordinator struct {
	redis *rds.Service
	log   *logger.Logger
}

func New(redis *rds.Service) *Coordinator {
	return &Coordinator{redis: redis, log: logger.New("CacheCoordinator")}
}

// Namespaces returns all registered namespace names.
func Namespaces() []string {
	return []string{NamespaceVideoStats, NamespaceJobStats, NamespaceVideos, NamespaceJobs}
}

func fullKey(namespace, key string) string { return namespace + ":" + key }

// HourKey builds a statistics key that rolls over once per hour, so stale
// aggregates age out even without an explicit invalidation.
func HourKey(op string) string {
	return hourKeyAt(op, time.Now())
}

func hourKeyAt(op string, t time.Time) string {
	return fmt.Sprintf("stats:%s:hour-%d", op, t.UnixMilli()/(1000*60*60))
}

// Get reports (found, error); a miss is not an error.
func (c *Coordinator) Get(ctx context.Context, namespace, key string, dest interface{}) (bool, error) {
	err := c.redis.CacheGet(ctx, fullKey(namespace, key), dest)
	if errors.Is(err, rds.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Coordinator) Put(ctx context.Context, namespace, key string, val interface{}) error {
	ttl, ok := namespaceTTL[namespace]
	if !ok {
		return ErrUnknownNamespace
	}
	return c.redis.CacheSet(ctx, fullKey(namespace, key), val, ttl)
}

// Invalidate evicts every entry in a namespace.
func (c *Coordinator) Invalidate(ctx context.Context, namespace string) error {
	if _, ok := namespaceTTL[namespace]; !ok {
		return ErrUnknownNamespace
	}
	n, err := c.redis.DeleteByPrefix(ctx, namespace+":")
	if err != nil {
		return err
	}
	c.log.LogDebugf("invalidated %d entries in namespace %s", n, namespace)
	return nil
}

// InvalidateAfterImport evicts the aggregates an import affects. Called by the
// orchestrator after a successful finalization, never on a lost transition.
func (c *Coordinator) InvalidateAfterImport(ctx context.Context) {
	for _, ns := range []string{NamespaceVideoStats, NamespaceVideos} {
		if err := c.Invalidate(ctx, ns); err != nil {
			c.log.LogErrorf("post-import invalidation of %s failed: %v", ns, err)
		}
	}
}

func (c *Coordinator) ClearAll(ctx context.Context) error {
	for _, ns := range Namespaces() {
		if err := c.Invalidate(ctx, ns); err != nil {
			return err
		}
	}
	c.log.LogInfo("cleared all cache namespaces")
	return nil
}

// NamespaceHealth is per-namespace reachability plus a best-effort size.
type NamespaceHealth struct {
	Reachable bool   `json:"reachable"`
	Size      int64  `json:"size"`
	Error     string `json:"error,omitempty"`
}

type HealthReport struct {
	Healthy    bool                       `json:"healthy"`
	Namespaces map[string]NamespaceHealth `json:"namespaces"`
}

// Health checks every registered namespace; the store is healthy only when
// all namespaces are reachable.
func (c *Coordinator) Health(ctx context.Context) HealthReport {
	report := HealthReport{Healthy: true, Namespaces: make(map[string]NamespaceHealth)}
	for _, ns := range Namespaces() {
		size, err := c.redis.CountByPrefix(ctx, ns+":")
		if err != nil {
			report.Healthy = false
			report.Namespaces[ns] = NamespaceHealth{Reachable: false, Error: err.Error()}
			continue
		}
		report.Namespaces[ns] = NamespaceHealth{Reachable: true, Size: size}
	}
	return report
}

// NamespaceStats describes one namespace for the statistics endpoint.
type NamespaceStats struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

func (c *Coordinator) Stats(ctx context.Context) ([]NamespaceStats, error) {
	out := make([]NamespaceStats, 0, len(namespaceTTL))
	for _, ns := range Namespaces() {
		size, err := c.redis.CountByPrefix(ctx, ns+":")
		if err != nil {
			return nil, err
		}
		out = append(out, NamespaceStats{Name: ns, Size: size, TTLSeconds: int64(namespaceTTL[ns].Seconds())})
	}
	return out, nil
}

// WarmUp runs each warmer best-effort; failures are logged, not returned.
func (c *Coordinator) WarmUp(ctx context.Context, warmers ...func(context.Context) error) {
	c.log.LogInfo("starting cache warm-up")
	for _, warm := range warmers {
		if err := warm(ctx); err != nil {
			c.log.LogErrorf("cache warm-up step failed: %v", err)
		}
	}
}
