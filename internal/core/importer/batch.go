package importer

import (
	"context"
	"fmt"

	"videometadata/internal/core/source"
)

// batchResult is the per-batch tuple combined by concatenation in batch
// submission order.
type batchResult struct {
	imported   int
	failedIDs  []string
	skippedIDs []string
}

// processBatch classifies every ID in one batch. IDs already persisted at
// dispatch time are skipped without touching the source; the rest go through
// a single FetchBatch call. A nil entry or a failed save downgrades that one
// ID to failed, never the batch. Structural adapter errors (transport failure,
// length mismatch) abort the batch and with it the job.
func (s *Service) processBatch(ctx context.Context, adapter source.Adapter, ids []string, existing map[string]struct{}) (*batchResult, error) {
	br := &batchResult{}

	fetch := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			br.skippedIDs = append(br.skippedIDs, id)
			continue
		}
		fetch = append(fetch, id)
	}
	if len(fetch) == 0 {
		return br, nil
	}

	items, err := adapter.FetchBatch(ctx, fetch)
	if err != nil {
		return nil, fmt.Errorf("fetch batch from %s: %w", adapter.SourceName(), err)
	}
	if len(items) != len(fetch) {
		return nil, fmt.Errorf("source %s returned %d results for %d ids", adapter.SourceName(), len(items), len(fetch))
	}

	for i, item := range items {
		id := fetch[i]
		if item == nil {
			s.log.LogWarnf("failed to retrieve metadata for video: %s", id)
			br.failedIDs = append(br.failedIDs, id)
			continue
		}
		if err := s.videos.Save(ctx, item); err != nil {
			s.log.LogErrorf("failed to save video %s: %v", id, err)
			br.failedIDs = append(br.failedIDs, id)
			continue
		}
		br.imported++
	}
	return br, nil
}
